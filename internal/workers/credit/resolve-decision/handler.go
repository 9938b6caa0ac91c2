// internal/workers/credit/resolve-decision/handler.go
package resolvedecision

import (
	"context"
	"encoding/json"
	"fmt"
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
	TaskType = "resolve-decision"
)

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
	counts := map[string]int{}
	decisions := make([]models.FinalDecision, 0, len(input.Adjusted))

	for _, row := range input.Adjusted {
		decision := h.resolve(&row, input)
		counts[decision.Decision]++
		decisions = append(decisions, decision)
	}

	h.logger.Info("decisions resolved", map[string]interface{}{
		"rows":      len(decisions),
		"counts":    counts,
		"threshold": input.Threshold,
	})

	return &Output{Decisions: decisions, Counts: counts}, nil
}

// resolve runs the three-step precedence for one application: model gate,
// rule verdict, collateral override. The override step wins over both.
func (h *Handler) resolve(row *models.AdjustedScore, input *Input) models.FinalDecision {
	reasons := map[string]bool{}

	modelPass := row.Score >= input.Threshold
	reasons["model_threshold"] = modelPass

	decision := models.DecisionDenied
	if modelPass {
		if verdict, ok := h.verdictFor(row.ApplicationID, input.Verdicts); ok {
			decision = verdict.Decision
			for check, pass := range verdict.Checks {
				reasons[check] = pass
			}
		} else {
			// A passing score with no rule verdict cannot approve.
			decision = models.DecisionDenied
		}
	}

	overrideTag := row.AssetOverride
	record, hasRecord := h.recordFor(row.ApplicationID, input.Lookup)
	if hasRecord && models.FraudStatuses[record.CollateralStatus] {
		overrideTag = models.DecisionDeniedAssetFraud
	}

	switch {
	case overrideTag == models.DecisionDeniedAssetFraud:
		decision = models.DecisionDeniedAssetFraud
	case overrideTag == models.DecisionPendingReview && decision == models.DecisionApproved:
		decision = models.DecisionPendingReview
	case hasRecord && !record.IncludeInCredit && decision == models.DecisionApproved:
		overrideTag = models.DecisionPendingReview
		decision = models.DecisionPendingReview
	}

	if overrideTag != "" {
		reasons["asset_override"] = true
	}

	return models.FinalDecision{
		ApplicationID: row.ApplicationID,
		Decision:      decision,
		Reasons:       reasons,
		OverrideTag:   overrideTag,
	}
}

func (h *Handler) verdictFor(id string, verdicts map[string]models.RuleVerdict) (models.RuleVerdict, bool) {
	if v, ok := verdicts[id]; ok {
		return v, true
	}
	v, ok := verdicts[strings.ToLower(strings.TrimSpace(id))]
	return v, ok
}

func (h *Handler) recordFor(id string, lookup map[string]models.CollateralRecord) (models.CollateralRecord, bool) {
	if r, ok := lookup[id]; ok {
		return r, true
	}
	r, ok := lookup[strings.ToLower(strings.TrimSpace(id))]
	return r, ok
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
