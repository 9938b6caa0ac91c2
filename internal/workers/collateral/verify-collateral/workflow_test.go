// internal/workers/collateral/verify-collateral/workflow_test.go
package verifycollateral

import (
	"testing"
	"time"

	"creditflow-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collateralApp(id string) models.Application {
	return models.Application{
		ApplicationID:      id,
		RequestedAmount:    80000,
		HasCollateral:      true,
		DeclaredCollateral: 120000,
		AssetTypeHint:      "Residential Property",
		CustomerSegment:    "Retail",
	}
}

func zeroProbabilities() Probabilities { return Probabilities{} }

func TestWorkflow_AllStagesPass(t *testing.T) {
	workflow := NewWorkflow(42, zeroProbabilities())
	app := collateralApp("app-1")

	record := workflow.Evaluate(&app)

	assert.Equal(t, models.StatusValidated, record.CollateralStatus)
	assert.Equal(t, models.StageCompleted, record.VerificationStage)
	assert.True(t, record.IncludeInCredit)
	assert.Greater(t, record.CollateralValue, 0.0)
	assert.False(t, record.LastUpdated.IsZero())
	assert.Equal(t, time.UTC, record.LastUpdated.Location())
	require.Len(t, record.WorkflowTrace, 5)
	for i, step := range record.WorkflowTrace {
		assert.Equal(t, models.StageOrder[i], step.Stage)
		assert.Equal(t, "pass", step.Decision)
	}
}

func TestWorkflow_KYCFailTerminatesImmediately(t *testing.T) {
	probs := zeroProbabilities()
	probs.KYCFail = 1.0
	workflow := NewWorkflow(42, probs)
	app := collateralApp("app-1")

	record := workflow.Evaluate(&app)

	assert.Equal(t, models.StatusDeniedFraud, record.CollateralStatus)
	assert.Equal(t, models.StageKYCScreening, record.VerificationStage)
	assert.False(t, record.IncludeInCredit)
	require.Len(t, record.WorkflowTrace, 1)
	assert.Equal(t, "fail", record.WorkflowTrace[0].Decision)

	// Fraud shifts confidence down hard and caps legitimacy.
	assert.GreaterOrEqual(t, record.Confidence, 0.1)
	assert.LessOrEqual(t, record.Confidence, 0.47)
	assert.LessOrEqual(t, record.LegitimacyScore, 0.4)
}

func TestWorkflow_DocumentFailTerminates(t *testing.T) {
	probs := zeroProbabilities()
	probs.DocFail = 1.0
	workflow := NewWorkflow(42, probs)
	app := collateralApp("app-1")

	record := workflow.Evaluate(&app)

	assert.Equal(t, models.StatusUnderVerification, record.CollateralStatus)
	assert.Equal(t, models.StageDocumentValidation, record.VerificationStage)
	assert.False(t, record.IncludeInCredit)
	require.Len(t, record.WorkflowTrace, 2)
}

func TestWorkflow_InspectionFailHaircutsValue(t *testing.T) {
	probs := zeroProbabilities()
	probs.InspectionFail = 1.0
	workflow := NewWorkflow(42, probs)
	app := collateralApp("app-1")

	record := workflow.Evaluate(&app)

	assert.Equal(t, models.StatusReEvaluate, record.CollateralStatus)
	assert.Equal(t, models.StageFieldInspection, record.VerificationStage)
	assert.False(t, record.IncludeInCredit)
	require.Len(t, record.WorkflowTrace, 4)

	beforeInspection := record.WorkflowTrace[2].CollateralValue
	afterInspection := record.WorkflowTrace[3].CollateralValue
	assert.Less(t, afterInspection, beforeInspection)
	assert.GreaterOrEqual(t, afterInspection, beforeInspection*0.7-0.01)
	assert.LessOrEqual(t, afterInspection, beforeInspection*0.95+0.01)
	assert.Equal(t, afterInspection, record.CollateralValue)
}

func TestWorkflow_CommitteeFailPendsReview(t *testing.T) {
	probs := zeroProbabilities()
	probs.CommitteeFail = 1.0
	workflow := NewWorkflow(42, probs)
	app := collateralApp("app-1")

	record := workflow.Evaluate(&app)

	assert.Equal(t, models.StatusPendingReview, record.CollateralStatus)
	assert.Equal(t, models.StageCreditCommittee, record.VerificationStage)
	assert.False(t, record.IncludeInCredit)
	require.Len(t, record.WorkflowTrace, 5)
}

func TestWorkflow_MonitorDoesNotTerminate(t *testing.T) {
	probs := zeroProbabilities()
	probs.DocMonitor = 1.0
	workflow := NewWorkflow(42, probs)
	app := collateralApp("app-1")

	record := workflow.Evaluate(&app)

	assert.Equal(t, models.StatusMonitor, record.CollateralStatus)
	assert.True(t, record.IncludeInCredit)
	require.Len(t, record.WorkflowTrace, 5)
	assert.Equal(t, "monitor", record.WorkflowTrace[1].Decision)
	assert.NotEmpty(t, record.Notes)
}

func TestWorkflow_MonitorOverriddenByLaterFail(t *testing.T) {
	probs := zeroProbabilities()
	probs.DocMonitor = 1.0
	probs.InspectionFail = 1.0
	workflow := NewWorkflow(42, probs)
	app := collateralApp("app-1")

	record := workflow.Evaluate(&app)

	assert.Equal(t, models.StatusReEvaluate, record.CollateralStatus)
	assert.False(t, record.IncludeInCredit)
}

func TestWorkflow_OverLeverageFlagsValuationMonitor(t *testing.T) {
	workflow := NewWorkflow(42, zeroProbabilities())
	app := models.Application{
		ApplicationID:      "app-1",
		RequestedAmount:    500000,
		HasCollateral:      true,
		DeclaredCollateral: 100000, // ltv well above 1.2 under any valuation noise
	}

	record := workflow.Evaluate(&app)

	assert.Equal(t, models.StatusMonitor, record.CollateralStatus)
	assert.True(t, record.IncludeInCredit)
	assert.Equal(t, "monitor", record.WorkflowTrace[2].Decision)
}

func TestWorkflow_NoCollateralShortCircuits(t *testing.T) {
	workflow := NewWorkflow(42, DefaultProbabilities())
	app := models.Application{ApplicationID: "app-1", RequestedAmount: 50000, HasCollateral: false}

	record := workflow.Evaluate(&app)

	assert.Equal(t, models.StatusMissing, record.CollateralStatus)
	assert.Equal(t, models.StageNoCollateral, record.VerificationStage)
	assert.False(t, record.IncludeInCredit)
	assert.Equal(t, 0.0, record.CollateralValue)
	assert.Equal(t, "None", record.AssetType)
	assert.Empty(t, record.WorkflowTrace)
}

func TestWorkflow_DeterministicAndOrderIndependent(t *testing.T) {
	apps := []models.Application{
		collateralApp("app-1"),
		collateralApp("app-2"),
		collateralApp("app-3"),
	}
	reversed := []models.Application{apps[2], apps[1], apps[0]}

	forward := NewWorkflow(7, DefaultProbabilities()).EvaluateBatch(apps)
	backward := NewWorkflow(7, DefaultProbabilities()).EvaluateBatch(reversed)

	byID := map[string]models.CollateralRecord{}
	for _, record := range backward {
		byID[record.ApplicationID] = record
	}

	for _, record := range forward {
		other := byID[record.ApplicationID]
		assert.Equal(t, record.CollateralStatus, other.CollateralStatus)
		assert.Equal(t, record.CollateralValue, other.CollateralValue)
		assert.Equal(t, record.Confidence, other.Confidence)
		assert.Equal(t, record.WorkflowTrace, other.WorkflowTrace)
	}
}

func TestWorkflow_ScoreBounds(t *testing.T) {
	workflow := NewWorkflow(99, DefaultProbabilities())
	apps := GenerateSyntheticLoans(150, 0.8, 99)

	for _, record := range workflow.EvaluateBatch(apps) {
		assert.GreaterOrEqual(t, record.Confidence, 0.0)
		assert.LessOrEqual(t, record.Confidence, 1.0)
		assert.GreaterOrEqual(t, record.LegitimacyScore, 0.0)
		assert.LessOrEqual(t, record.LegitimacyScore, 1.0)
		assert.GreaterOrEqual(t, record.CollateralValue, 0.0)
	}
}

func TestGenerateSyntheticLoans(t *testing.T) {
	first := GenerateSyntheticLoans(40, 0.75, 5)
	second := GenerateSyntheticLoans(40, 0.75, 5)

	require.Len(t, first, 40)
	assert.Equal(t, first, second, "same seed must reproduce the batch")

	withCollateral := 0
	for _, app := range first {
		assert.NotEmpty(t, app.ApplicationID)
		assert.GreaterOrEqual(t, app.RequestedAmount, 20000.0)
		assert.Less(t, app.RequestedAmount, 350000.0)
		if app.HasCollateral {
			withCollateral++
			assert.Greater(t, app.DeclaredCollateral, 0.0)
			assert.NotEmpty(t, app.AssetTypeHint)
		}
	}
	assert.Greater(t, withCollateral, 0)
	assert.Less(t, withCollateral, 40)
}
