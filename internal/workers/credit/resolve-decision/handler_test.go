// internal/workers/credit/resolve-decision/handler_test.go
package resolvedecision

import (
	"context"
	"testing"

	"creditflow-workers/internal/common/logger"
	"creditflow-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvingVerdict() models.RuleVerdict {
	return models.RuleVerdict{
		Decision: models.DecisionApproved,
		Checks:   map[string]bool{"max_dti": true, "salary_floor": true},
	}
}

func denyingVerdict() models.RuleVerdict {
	return models.RuleVerdict{
		Decision: models.DecisionDenied,
		Checks:   map[string]bool{"max_dti": false, "salary_floor": true},
	}
}

func TestHandler_Execute_ModelGateDenies(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Adjusted:  []models.AdjustedScore{{ApplicationID: "app-1", Score: 0.3, AdjustmentFactor: 1}},
		Verdicts:  map[string]models.RuleVerdict{"app-1": approvingVerdict()},
		Threshold: 0.5,
	})
	require.NoError(t, err)

	decision := output.Decisions[0]
	assert.Equal(t, models.DecisionDenied, decision.Decision)
	assert.False(t, decision.Reasons["model_threshold"])
	// Rules are not consulted below the threshold.
	_, ruleReasonPresent := decision.Reasons["max_dti"]
	assert.False(t, ruleReasonPresent)
}

func TestHandler_Execute_ModelPassThenRulesDecide(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Adjusted: []models.AdjustedScore{
			{ApplicationID: "app-1", Score: 0.8, AdjustmentFactor: 1},
			{ApplicationID: "app-2", Score: 0.8, AdjustmentFactor: 1},
		},
		Verdicts: map[string]models.RuleVerdict{
			"app-1": approvingVerdict(),
			"app-2": denyingVerdict(),
		},
		Threshold: 0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionApproved, output.Decisions[0].Decision)
	assert.True(t, output.Decisions[0].Reasons["model_threshold"])
	assert.True(t, output.Decisions[0].Reasons["max_dti"])

	assert.Equal(t, models.DecisionDenied, output.Decisions[1].Decision)
	assert.False(t, output.Decisions[1].Reasons["max_dti"])

	assert.Equal(t, 1, output.Counts[models.DecisionApproved])
	assert.Equal(t, 1, output.Counts[models.DecisionDenied])
}

func TestHandler_Execute_FraudOverrideIsAbsolute(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	tests := []struct {
		name  string
		score float64
	}{
		{name: "would-be approval", score: 0.95},
		{name: "would-be denial", score: 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := handler.Execute(context.Background(), &Input{
				Adjusted: []models.AdjustedScore{{
					ApplicationID:    "app-1",
					Score:            tt.score,
					AdjustmentFactor: 0.6,
					AssetOverride:    models.DecisionDeniedAssetFraud,
				}},
				Verdicts:  map[string]models.RuleVerdict{"app-1": approvingVerdict()},
				Threshold: 0.5,
			})
			require.NoError(t, err)

			decision := output.Decisions[0]
			assert.Equal(t, models.DecisionDeniedAssetFraud, decision.Decision)
			assert.Equal(t, models.DecisionDeniedAssetFraud, decision.OverrideTag)
			assert.True(t, decision.Reasons["asset_override"])
		})
	}
}

func TestHandler_Execute_FraudStatusWithoutOverrideTagStillDenies(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	for _, status := range []string{models.StatusFraudulent, models.StatusRejected, models.StatusDeniedFraud} {
		output, err := handler.Execute(context.Background(), &Input{
			Adjusted: []models.AdjustedScore{{ApplicationID: "app-1", Score: 0.95, AdjustmentFactor: 1}},
			Verdicts: map[string]models.RuleVerdict{"app-1": approvingVerdict()},
			Lookup: map[string]models.CollateralRecord{
				"app-1": {ApplicationID: "app-1", CollateralStatus: status, IncludeInCredit: false},
			},
			Threshold: 0.5,
		})
		require.NoError(t, err)
		assert.Equal(t, models.DecisionDeniedAssetFraud, output.Decisions[0].Decision, "status %s", status)
	}
}

func TestHandler_Execute_PendingReviewDemotesOnlyApprovals(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Adjusted: []models.AdjustedScore{
			{ApplicationID: "approved", Score: 0.9, AdjustmentFactor: 1, AssetOverride: models.DecisionPendingReview},
			{ApplicationID: "denied", Score: 0.9, AdjustmentFactor: 1, AssetOverride: models.DecisionPendingReview},
		},
		Verdicts: map[string]models.RuleVerdict{
			"approved": approvingVerdict(),
			"denied":   denyingVerdict(),
		},
		Threshold: 0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, models.DecisionPendingReview, output.Decisions[0].Decision)
	// A denial stays a denial; review never upgrades or re-labels it.
	assert.Equal(t, models.DecisionDenied, output.Decisions[1].Decision)
}

func TestHandler_Execute_ExclusionRoundTrip(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	adjusted := make([]models.AdjustedScore, 0, 5)
	verdicts := map[string]models.RuleVerdict{}
	lookup := map[string]models.CollateralRecord{}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		adjusted = append(adjusted, models.AdjustedScore{ApplicationID: id, Score: 0.99, AdjustmentFactor: 1})
		verdicts[id] = approvingVerdict()
		lookup[id] = models.CollateralRecord{
			ApplicationID:    id,
			CollateralStatus: models.StatusValidated,
			IncludeInCredit:  false,
		}
	}

	output, err := handler.Execute(context.Background(), &Input{
		Adjusted:  adjusted,
		Verdicts:  verdicts,
		Lookup:    lookup,
		Threshold: 0.5,
	})
	require.NoError(t, err)

	for _, decision := range output.Decisions {
		assert.Equal(t, models.DecisionPendingReview, decision.Decision)
	}
	assert.Equal(t, 5, output.Counts[models.DecisionPendingReview])
}

func TestHandler_Execute_DecisionSetIsClosed(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	valid := map[string]bool{
		models.DecisionApproved:         true,
		models.DecisionDenied:           true,
		models.DecisionDeniedAssetFraud: true,
		models.DecisionPendingReview:    true,
	}

	input := &Input{
		Adjusted: []models.AdjustedScore{
			{ApplicationID: "a", Score: 0.9, AdjustmentFactor: 1},
			{ApplicationID: "b", Score: 0.1, AdjustmentFactor: 1},
			{ApplicationID: "c", Score: 0.9, AdjustmentFactor: 0.6, AssetOverride: models.DecisionDeniedAssetFraud},
			{ApplicationID: "d", Score: 0.9, AdjustmentFactor: 1, AssetOverride: models.DecisionPendingReview},
		},
		Verdicts: map[string]models.RuleVerdict{
			"a": approvingVerdict(),
			"b": approvingVerdict(),
			"c": approvingVerdict(),
			"d": approvingVerdict(),
		},
		Threshold: 0.5,
	}

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	for _, decision := range output.Decisions {
		assert.True(t, valid[decision.Decision], "unexpected decision %q", decision.Decision)
	}
}
