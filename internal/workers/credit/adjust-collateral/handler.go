// internal/workers/credit/adjust-collateral/handler.go
package adjustcollateral

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"creditflow-workers/internal/common/errors"
	"creditflow-workers/internal/common/logger"
	"creditflow-workers/internal/common/metrics"
	"creditflow-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "adjust-collateral"
)

// statusMultipliers maps a collateral status to its score multiplier.
// Clean statuses earn a modest boost, the review family a modest penalty,
// fraud and rejection a heavy one. Unknown statuses stay neutral.
var statusMultipliers = map[string]float64{
	models.StatusValidated: 1.08,
	models.StatusApproved:  1.07,
	models.StatusCompleted: 1.06,
	models.StatusCleared:   1.05,

	models.StatusMonitor:           0.95,
	models.StatusPendingReview:     0.92,
	models.StatusUnderReview:       0.90,
	models.StatusReEvaluate:        0.89,
	models.StatusUnderVerification: 0.88,

	models.StatusRejected:    0.70,
	models.StatusFraudulent:  0.65,
	models.StatusDeniedFraud: 0.65,
}

type Handler struct {
	logger logger.Logger
	errs   *errors.ErrorHandler
	config *Config
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		logger: scoped,
		errs:   errors.NewErrorHandler(scoped),
		config: config,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errs.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	targetLTV := h.config.TargetLTV
	if input.TargetLTV != nil && *input.TargetLTV > 0 {
		targetLTV = *input.TargetLTV
	}

	byID := make(map[string]models.Application, len(input.Applications))
	for i := range input.Applications {
		byID[lookupKey(input.Applications[i].ApplicationID)] = input.Applications[i]
	}

	adjusted := make([]models.AdjustedScore, 0, len(input.Scores))
	for _, score := range input.Scores {
		app := byID[lookupKey(score.ApplicationID)]
		record, hasRecord := input.Lookup[lookupKey(score.ApplicationID)]

		result := models.AdjustedScore{
			ApplicationID:    score.ApplicationID,
			AdjustmentFactor: 1.0,
			Score:            clip01(score.BaseScore),
		}

		if hasRecord {
			h.adjust(&result, &record, &app, targetLTV)
			result.Score = clip01(score.BaseScore * result.AdjustmentFactor)
		}

		adjusted = append(adjusted, result)
	}

	h.logger.Info("collateral adjustment applied", map[string]interface{}{
		"rows":      len(adjusted),
		"targetLtv": targetLTV,
	})

	return &Output{Adjusted: adjusted}, nil
}

// adjust multiplies out the LTV, status, confidence and legitimacy factors,
// applies the exclusion override, then clips the factor to its bounds.
func (h *Handler) adjust(result *models.AdjustedScore, record *models.CollateralRecord, app *models.Application, targetLTV float64) {
	factor := 1.0

	loanAmount := app.RequestedAmount
	if loanAmount <= 0 {
		loanAmount = record.LoanAmountDeclared
	}
	if loanAmount > 0 && record.CollateralValue > 0 {
		ltv := loanAmount / record.CollateralValue
		result.LTV = &ltv
		if ltv <= targetLTV {
			factor *= math.Min(1.25, 1+(targetLTV-ltv)*0.12)
		} else {
			factor *= math.Max(0.55, 1-(ltv-targetLTV)*0.25)
		}
	}

	if m, ok := statusMultipliers[record.CollateralStatus]; ok {
		factor *= m
	}

	factor *= 1 + clip((record.Confidence-0.8)*0.15, -0.08, 0.08)
	factor *= 1 + clip((record.LegitimacyScore-0.85)*0.2, -0.1, 0.1)

	// Fraud forces the denial override. Exclusion without fraud takes the
	// same factor cap but demotes to review instead of hard denial.
	switch {
	case models.FraudStatuses[record.CollateralStatus]:
		factor = math.Min(factor, 0.6)
		result.AssetOverride = models.DecisionDeniedAssetFraud
	case !record.IncludeInCredit:
		factor = math.Min(factor, 0.6)
		result.AssetOverride = models.DecisionPendingReview
	case models.ReviewStatuses[record.CollateralStatus]:
		result.AssetOverride = models.DecisionPendingReview
	}

	result.AdjustmentFactor = clip(factor, models.AdjustmentFactorMin, models.AdjustmentFactorMax)
}

func lookupKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clip01(v float64) float64 {
	return clip(v, 0, 1)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
