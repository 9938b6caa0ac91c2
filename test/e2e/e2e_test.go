// test/e2e/e2e_test.go
//
// In-process end-to-end run of the full appraisal pipeline: synthetic loans
// go through the collateral verification workflow, the resulting bridge
// feeds the batch orchestrator, and the run artifacts are checked for the
// pipeline-level invariants no single worker test can see.
package e2e

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditflow-workers/internal/common/logger"
	"creditflow-workers/internal/models"
	verifycollateral "creditflow-workers/internal/workers/collateral/verify-collateral"
	runappraisal "creditflow-workers/internal/workers/credit/run-appraisal"
	scoreapplication "creditflow-workers/internal/workers/credit/score-application"
)

var finalDecisions = map[string]bool{
	models.DecisionApproved:         true,
	models.DecisionDenied:           true,
	models.DecisionDeniedAssetFraud: true,
	models.DecisionPendingReview:    true,
}

func pipelineModel() *scoreapplication.LogisticModel {
	return &scoreapplication.LogisticModel{
		FeatureNames: []string{"income", "requested_amount"},
		Weights:      []float64{0.00004, -0.000008},
		Bias:         -1.2,
	}
}

// pipelineBatch builds rows that clear the classic rule checks, plus the
// verified collateral bridge derived from them.
func pipelineBatch(t *testing.T, n int, seed int64) (rows, bridgeRows []map[string]interface{}) {
	t.Helper()

	apps := verifycollateral.GenerateSyntheticLoans(n, 0.8, seed)
	records := verifycollateral.NewWorkflow(seed, verifycollateral.DefaultProbabilities()).EvaluateBatch(apps)

	rows = make([]map[string]interface{}, 0, len(apps))
	for _, app := range apps {
		rows = append(rows, map[string]interface{}{
			"application_id":        app.ApplicationID,
			"income":                app.Income / 12, // annual to monthly
			"requested_amount":      app.RequestedAmount,
			"employment_years":      6,
			"dti":                   0.2,
			"credit_history_length": 8,
			"num_delinquencies":     0,
			"current_loans":         1,
			"loan_term_months":      36,
			"existing_debt":         0,
			"customer_segment":      app.CustomerSegment,
		})
	}

	bridgeRows = make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		bridgeRows = append(bridgeRows, map[string]interface{}{
			"application_id":       record.ApplicationID,
			"collateral_value":     record.CollateralValue,
			"collateral_status":    record.CollateralStatus,
			"verification_stage":   record.VerificationStage,
			"confidence":           record.Confidence,
			"legitimacy_score":     record.LegitimacyScore,
			"include_in_credit":    record.IncludeInCredit,
			"asset_type":           record.AssetType,
			"loan_amount_declared": record.LoanAmountDeclared,
			"borrower_segment":     record.BorrowerSegment,
			"last_updated":         record.LastUpdated.Format(time.RFC3339),
		})
	}
	return rows, bridgeRows
}

func newPipeline(t *testing.T) *runappraisal.Handler {
	t.Helper()
	return runappraisal.NewHandler(
		&runappraisal.Config{Timeout: 2 * time.Minute},
		pipelineModel(), nil, nil,
		logger.NewTestLogger(t),
	)
}

func TestPipeline_FullBatchInvariants(t *testing.T) {
	rows, bridgeRows := pipelineBatch(t, 60, 42)
	seed := int64(42)

	output, err := newPipeline(t).Execute(context.Background(), &runappraisal.Input{
		Rows:       rows,
		BridgeRows: bridgeRows,
		Seed:       &seed,
	})
	require.NoError(t, err)

	// Every row decided, exactly once, inside the closed decision set.
	require.Len(t, output.Decisions, 60)
	require.Len(t, output.Explanations, 60)
	seen := make(map[string]bool, 60)
	total := 0
	for _, decision := range output.Decisions {
		assert.True(t, finalDecisions[decision.Decision], "unexpected decision %q", decision.Decision)
		assert.False(t, seen[decision.ApplicationID], "duplicate decision for %s", decision.ApplicationID)
		seen[decision.ApplicationID] = true
	}
	for _, n := range output.Summary.Counts {
		total += n
	}
	assert.Equal(t, 60, total)
	assert.Equal(t, 60, output.Summary.Total)

	byID := make(map[string]models.Explanation, len(output.Explanations))
	for _, explanation := range output.Explanations {
		byID[explanation.ApplicationID] = explanation
	}

	for _, decision := range output.Decisions {
		explanation := byID[decision.ApplicationID]
		assert.Equal(t, decision.Decision, explanation.Decision)

		// Scores and factors stay inside their bounds.
		assert.GreaterOrEqual(t, explanation.Score, 0.0)
		assert.LessOrEqual(t, explanation.Score, 1.0)
		assert.GreaterOrEqual(t, explanation.AdjustmentFactor, models.AdjustmentFactorMin)
		assert.LessOrEqual(t, explanation.AdjustmentFactor, models.AdjustmentFactorMax)

		// Collateral overrides beat model and rules.
		if models.FraudStatuses[explanation.CollateralStatus] {
			assert.Equal(t, models.DecisionDeniedAssetFraud, decision.Decision,
				"fraud collateral on %s must deny", decision.ApplicationID)
		}
	}

	// The verified bridge was actually joined: no missing-table warning.
	assert.NotContains(t, output.Summary.Warnings, "BRIDGE_TABLE_MISSING")
	require.NotNil(t, output.Summary.Bridge)
	assert.Equal(t, 60, output.Summary.Bridge.Rows)
}

func TestPipeline_DeterministicUnderSeed(t *testing.T) {
	run := func() *runappraisal.Output {
		rows, bridgeRows := pipelineBatch(t, 40, 7)
		seed := int64(7)
		output, err := newPipeline(t).Execute(context.Background(), &runappraisal.Input{
			Rows:       rows,
			BridgeRows: bridgeRows,
			Seed:       &seed,
		})
		require.NoError(t, err)
		return output
	}

	first := run()
	second := run()

	require.Len(t, second.Decisions, len(first.Decisions))
	for i := range first.Decisions {
		assert.Equal(t, first.Decisions[i].Decision, second.Decisions[i].Decision)
	}
	assert.Equal(t, first.Summary.Counts, second.Summary.Counts)
	assert.Equal(t, first.Summary.Threshold, second.Summary.Threshold)
}

func TestPipeline_ExcludedCollateralNeverApproves(t *testing.T) {
	rows, bridgeRows := pipelineBatch(t, 50, 11)
	seed := int64(11)

	output, err := newPipeline(t).Execute(context.Background(), &runappraisal.Input{
		Rows:       rows,
		BridgeRows: bridgeRows,
		Seed:       &seed,
	})
	require.NoError(t, err)

	excluded := make(map[string]bool)
	for _, row := range bridgeRows {
		if include, ok := row["include_in_credit"].(bool); ok && !include {
			excluded[row["application_id"].(string)] = true
		}
	}
	require.NotEmpty(t, excluded, "workflow seed should exclude at least one row")

	for _, decision := range output.Decisions {
		if excluded[decision.ApplicationID] {
			assert.NotEqual(t, models.DecisionApproved, decision.Decision,
				"excluded collateral on %s must not approve", decision.ApplicationID)
		}
	}
}

func TestPipeline_QuantileThresholdHoldsAcrossPipeline(t *testing.T) {
	rows, bridgeRows := pipelineBatch(t, 80, 3)
	seed := int64(3)

	output, err := newPipeline(t).Execute(context.Background(), &runappraisal.Input{
		Rows:       rows,
		BridgeRows: bridgeRows,
		Params:     json.RawMessage(`{"targetApprovalRate": 0.3}`),
		Seed:       &seed,
	})
	require.NoError(t, err)

	passing := 0
	for _, explanation := range output.Explanations {
		if explanation.Score >= output.Summary.Threshold {
			passing++
		}
	}
	// Quantile interpolation keeps the passing share within one row of target.
	assert.InDelta(t, 24, passing, 1)
}

func TestPipeline_NDIModeEndToEnd(t *testing.T) {
	rows, bridgeRows := pipelineBatch(t, 30, 19)
	for _, row := range rows {
		row["monthly_expenses"] = 900
		row["monthly_debt_payments"] = 400
	}
	seed := int64(19)

	output, err := newPipeline(t).Execute(context.Background(), &runappraisal.Input{
		Rows:       rows,
		BridgeRows: bridgeRows,
		Params:     json.RawMessage(`{"ruleMode": "ndi"}`),
		Seed:       &seed,
	})
	require.NoError(t, err)

	assert.Equal(t, "ndi", output.Summary.RuleMode)
	for _, decision := range output.Decisions {
		assert.True(t, finalDecisions[decision.Decision])
	}
}
