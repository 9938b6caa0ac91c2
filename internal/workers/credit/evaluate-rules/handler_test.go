// internal/workers/credit/evaluate-rules/handler_test.go
package evaluaterules

import (
	"context"
	"testing"

	"creditflow-workers/internal/common/errors"
	"creditflow-workers/internal/common/logger"
	"creditflow-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute_ClassicBatch(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	good := cleanApplication()
	bad := cleanApplication()
	bad.ApplicationID = "app-2"
	bad.DebtToIncome = 0.9

	output, err := handler.Execute(context.Background(), &Input{
		Applications: []models.Application{good, bad},
		Params:       models.DefaultRunParams(),
	})
	require.NoError(t, err)

	assert.Equal(t, "classic", output.RuleMode)
	require.Len(t, output.Verdicts, 2)
	assert.Equal(t, "app-1", output.Verdicts[0].ApplicationID)
	assert.Equal(t, models.DecisionApproved, output.Verdicts[0].Decision)
	assert.Equal(t, "app-2", output.Verdicts[1].ApplicationID)
	assert.Equal(t, models.DecisionDenied, output.Verdicts[1].Decision)
}

func TestHandler_Execute_UnknownRuleModeIsFatal(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	params := models.DefaultRunParams()
	params.RuleMode = "heuristic"

	output, err := handler.Execute(context.Background(), &Input{
		Applications: []models.Application{cleanApplication()},
		Params:       params,
	})
	assert.Nil(t, output, "fatal validation must not emit partial verdicts")
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidRuleMode, stdErr.Code)
}
