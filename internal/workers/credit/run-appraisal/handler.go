// internal/workers/credit/run-appraisal/handler.go
package runappraisal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"creditflow-workers/internal/common/errors"
	"creditflow-workers/internal/common/logger"
	"creditflow-workers/internal/common/metrics"
	"creditflow-workers/internal/models"
	resolvebridge "creditflow-workers/internal/workers/collateral/resolve-bridge"
	adjustcollateral "creditflow-workers/internal/workers/credit/adjust-collateral"
	calibratethreshold "creditflow-workers/internal/workers/credit/calibrate-threshold"
	evaluaterules "creditflow-workers/internal/workers/credit/evaluate-rules"
	resolvedecision "creditflow-workers/internal/workers/credit/resolve-decision"
	scoreapplication "creditflow-workers/internal/workers/credit/score-application"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "run-appraisal"
)

// Handler drives the whole appraisal pipeline for one batch: resolve rows,
// score, resolve bridge, adjust, calibrate, evaluate rules, resolve
// decisions, then persist and summarize.
type Handler struct {
	logger     logger.Logger
	errs       *errors.ErrorHandler
	config     *Config
	scorer     *scoreapplication.Handler
	bridge     *resolvebridge.Handler
	adjuster   *adjustcollateral.Handler
	calibrator *calibratethreshold.Handler
	rules      *evaluaterules.Handler
	resolver   *resolvedecision.Handler
	store      *RunStore
}

func NewHandler(config *Config, model scoreapplication.Model, rdb *redis.Client, db *sql.DB, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	h := &Handler{
		logger:     scoped,
		errs:       errors.NewErrorHandler(scoped),
		config:     config,
		scorer:     scoreapplication.NewHandler(scoreapplication.LoadConfig(), model, log),
		bridge:     resolvebridge.NewHandler(resolvebridge.LoadConfig(), rdb, log),
		adjuster:   adjustcollateral.NewHandler(adjustcollateral.LoadConfig(), log),
		calibrator: calibratethreshold.NewHandler(calibratethreshold.LoadConfig(), log),
		rules:      evaluaterules.NewHandler(evaluaterules.LoadConfig(), log),
		resolver:   resolvedecision.NewHandler(resolvedecision.LoadConfig(), log),
	}
	if db != nil {
		h.store = NewRunStore(db)
	}
	return h
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

// execute runs the pipeline. Fatal validation aborts before any row is
// emitted; bridge trouble degrades to neutral factors plus a summary warning.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validateParams(input.Params); err != nil {
		return nil, err
	}
	params := models.DefaultRunParams()
	if len(input.Params) > 0 {
		if err := json.Unmarshal(input.Params, &params); err != nil {
			return nil, errors.NewBatchParamsInvalidError(err.Error())
		}
	}
	if _, err := evaluaterules.SelectRuleSet(params.RuleMode); err != nil {
		return nil, err
	}
	if len(input.Rows) == 0 {
		return nil, errors.NewEmptyBatchError()
	}

	apps := models.ResolveBatch(input.Rows)

	scoreOut, err := h.scorer.Execute(ctx, &scoreapplication.Input{Applications: apps})
	if err != nil {
		return nil, err
	}

	bridgeOut, err := h.bridge.Execute(ctx, &resolvebridge.Input{
		BridgeID: input.BridgeID,
		JoinKey:  params.BridgeJoinKey,
		Rows:     input.BridgeRows,
	})
	if err != nil {
		return nil, err
	}

	adjustOut, err := h.adjuster.Execute(ctx, &adjustcollateral.Input{
		Applications: apps,
		Scores:       scoreOut.Scores,
		Lookup:       bridgeOut.Lookup,
		TargetLTV:    &params.TargetLTV,
	})
	if err != nil {
		return nil, err
	}

	adjustedScores := make([]float64, 0, len(adjustOut.Adjusted))
	for _, row := range adjustOut.Adjusted {
		adjustedScores = append(adjustedScores, row.Score)
	}
	thresholdOut, err := h.calibrator.Execute(ctx, &calibratethreshold.Input{
		Scores:             adjustedScores,
		Threshold:          params.Threshold,
		TargetApprovalRate: params.TargetApprovalRate,
		RandomBand:         params.RandomBand,
		Seed:               input.Seed,
	})
	if err != nil {
		return nil, err
	}

	rulesOut, err := h.rules.Execute(ctx, &evaluaterules.Input{Applications: apps, Params: params})
	if err != nil {
		return nil, err
	}
	verdicts := make(map[string]models.RuleVerdict, len(rulesOut.Verdicts))
	for _, v := range rulesOut.Verdicts {
		verdicts[v.ApplicationID] = v.RuleVerdict
	}

	resolveOut, err := h.resolver.Execute(ctx, &resolvedecision.Input{
		Adjusted:  adjustOut.Adjusted,
		Verdicts:  verdicts,
		Lookup:    bridgeOut.Lookup,
		Threshold: thresholdOut.Threshold,
	})
	if err != nil {
		return nil, err
	}

	runID := "run_" + uuid.NewString()
	summary := models.BatchSummary{
		RunID:           runID,
		Counts:          resolveOut.Counts,
		Total:           len(resolveOut.Decisions),
		Threshold:       thresholdOut.Threshold,
		RuleMode:        params.RuleMode,
		Bridge:          &bridgeOut.Summary,
		Warnings:        append([]string(nil), bridgeOut.Summary.Warnings...),
		FallbackScoring: scoreOut.FallbackUsed,
	}
	if scoreOut.FallbackUsed {
		summary.Warnings = append(summary.Warnings, errors.WarnProbabilityFallback)
	}

	explanations := h.buildExplanations(scoreOut, adjustOut, bridgeOut, resolveOut, verdicts)

	for decision, n := range resolveOut.Counts {
		metrics.AppraisalDecisions.WithLabelValues(decision, params.RuleMode).Add(float64(n))
	}
	metrics.AppraisalBatchSize.WithLabelValues(params.RuleMode).Observe(float64(summary.Total))

	if h.store != nil && h.config.PersistRuns {
		if err := h.store.SaveRun(ctx, &summary, explanations); err != nil {
			// The run result stands even when the audit write fails.
			h.logger.Error("run persistence failed", map[string]interface{}{
				"runId": runID,
				"error": err,
			})
			summary.Warnings = append(summary.Warnings, string(errors.ErrCodeRunPersistFailed))
		}
	}

	h.logger.Info("appraisal run complete", map[string]interface{}{
		"runId":     runID,
		"total":     summary.Total,
		"counts":    summary.Counts,
		"threshold": summary.Threshold,
		"ruleMode":  summary.RuleMode,
	})

	return &Output{
		RunID:        runID,
		Decisions:    resolveOut.Decisions,
		Explanations: explanations,
		Summary:      summary,
	}, nil
}

func (h *Handler) buildExplanations(
	scoreOut *scoreapplication.Output,
	adjustOut *adjustcollateral.Output,
	bridgeOut *resolvebridge.Output,
	resolveOut *resolvedecision.Output,
	verdicts map[string]models.RuleVerdict,
) []models.Explanation {
	baseScores := make(map[string]float64, len(scoreOut.Scores))
	for _, s := range scoreOut.Scores {
		baseScores[s.ApplicationID] = s.BaseScore
	}
	adjusted := make(map[string]models.AdjustedScore, len(adjustOut.Adjusted))
	for _, a := range adjustOut.Adjusted {
		adjusted[a.ApplicationID] = a
	}

	explanations := make([]models.Explanation, 0, len(resolveOut.Decisions))
	for _, decision := range resolveOut.Decisions {
		adj := adjusted[decision.ApplicationID]
		explanation := models.Explanation{
			ApplicationID:    decision.ApplicationID,
			Decision:         decision.Decision,
			Score:            adj.Score,
			BaseScore:        baseScores[decision.ApplicationID],
			Reasons:          decision.Reasons,
			AdjustmentFactor: adj.AdjustmentFactor,
			LTV:              adj.LTV,
			OverrideTag:      decision.OverrideTag,
		}
		if verdict, ok := verdicts[decision.ApplicationID]; ok {
			explanation.Proposal = verdict.Proposal
		}
		if record, ok := bridgeOut.Lookup[strings.ToLower(strings.TrimSpace(decision.ApplicationID))]; ok {
			value := record.CollateralValue
			confidence := record.Confidence
			legitimacy := record.LegitimacyScore
			explanation.CollateralValue = &value
			explanation.CollateralStatus = record.CollateralStatus
			explanation.VerificationStage = record.VerificationStage
			explanation.Confidence = &confidence
			explanation.LegitimacyScore = &legitimacy
		}
		explanations = append(explanations, explanation)
	}
	return explanations
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
