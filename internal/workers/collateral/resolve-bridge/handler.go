// internal/workers/collateral/resolve-bridge/handler.go
package resolvebridge

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
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "resolve-bridge"

	cacheKeyPrefix = "collateral:bridge:"
)

type Handler struct {
	logger logger.Logger
	errs   *errors.ErrorHandler
	config *Config
	redis  *redis.Client
}

// NewHandler builds the bridge resolver. The redis client is optional; when
// nil every request normalizes from scratch.
func NewHandler(config *Config, rdb *redis.Client, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		logger: scoped,
		errs:   errors.NewErrorHandler(scoped),
		config: config,
		redis:  rdb,
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
		h.errs.HandleJobError(ctx, client, job, errors.NewBridgeLoadFailedError(err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	joinKey := input.JoinKey
	if joinKey == "" {
		joinKey = h.config.JoinKey
	}
	joinKey = models.NormalizeKey(joinKey)

	if cached := h.fromCache(ctx, input.BridgeID); cached != nil {
		cached.CacheHit = true
		return cached, nil
	}

	output := h.resolve(joinKey, input.Rows)
	h.toCache(ctx, input.BridgeID, output)
	return output, nil
}

// resolve normalizes the bridge table into a join-value keyed lookup. Missing
// tables and unresolvable join keys degrade to an empty lookup plus a warning;
// they never fail the batch.
func (h *Handler) resolve(joinKey string, rows []map[string]interface{}) *Output {
	summary := models.BridgeSummary{
		JoinKey:      joinKey,
		StatusCounts: map[string]int{},
	}
	lookup := map[string]models.CollateralRecord{}

	if len(rows) == 0 {
		summary.Warnings = append(summary.Warnings, errors.WarnBridgeTableMissing)
		h.logger.Warn("bridge table missing or empty, collateral factors stay neutral", map[string]interface{}{
			"warning": errors.WarnBridgeTableMissing,
		})
		return &Output{Lookup: lookup, Summary: summary}
	}

	normalized := make([]map[string]interface{}, 0, len(rows))
	joinKeyFound := false
	for _, row := range rows {
		nrow := make(map[string]interface{}, len(row))
		for col, v := range row {
			nrow[models.NormalizeKey(col)] = v
		}
		if _, ok := nrow[joinKey]; ok {
			joinKeyFound = true
		}
		normalized = append(normalized, nrow)
	}

	summary.Rows = len(normalized)

	if !joinKeyFound {
		summary.Warnings = append(summary.Warnings, errors.WarnJoinKeyNotFound)
		h.logger.Warn("join key not present in bridge table", map[string]interface{}{
			"warning": errors.WarnJoinKeyNotFound,
			"joinKey": joinKey,
		})
		return &Output{Lookup: lookup, Summary: summary}
	}

	for _, nrow := range normalized {
		joinRaw, ok := nrow[joinKey]
		if !ok {
			continue
		}
		joinValue := normalizeJoinValue(joinRaw)
		if joinValue == "" {
			continue
		}

		record := recordFromRow(joinValue, nrow)
		lookup[joinValue] = record

		status := record.CollateralStatus
		if status == "" {
			status = "unknown"
		}
		summary.StatusCounts[status]++
		if record.IncludeInCredit {
			summary.IncludedRows++
		} else {
			summary.ExcludedRows++
		}
	}

	h.logger.Info("bridge table resolved", map[string]interface{}{
		"rows":     summary.Rows,
		"included": summary.IncludedRows,
		"excluded": summary.ExcludedRows,
	})

	return &Output{Lookup: lookup, Summary: summary}
}

func recordFromRow(joinValue string, row map[string]interface{}) models.CollateralRecord {
	record := models.CollateralRecord{
		ApplicationID:      joinValue,
		CollateralValue:    models.CoerceFloat(row["collateral_value"], 0),
		CollateralStatus:   stringField(row, "collateral_status"),
		VerificationStage:  stringField(row, "verification_stage"),
		Confidence:         models.CoerceFloat(row["confidence"], 0),
		LegitimacyScore:    models.CoerceFloat(row["legitimacy_score"], 0),
		IncludeInCredit:    models.CoerceBool(row["include_in_credit"], true),
		AssetType:          stringField(row, "asset_type"),
		Notes:              stringField(row, "notes"),
		LoanAmountDeclared: models.CoerceFloat(row["loan_amount_declared"], 0),
		BorrowerSegment:    stringField(row, "borrower_segment"),
	}
	if raw, ok := row["last_updated"]; ok {
		if s := strings.TrimSpace(fmt.Sprint(raw)); s != "" {
			if ts, err := time.Parse(time.RFC3339, s); err == nil {
				record.LastUpdated = ts
			}
		}
	}
	return record
}

func stringField(row map[string]interface{}, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func normalizeJoinValue(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case float64:
		// Join columns read from CSV/JSON arrive as floats for numeric ids.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprint(v)
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	}
}

func (h *Handler) fromCache(ctx context.Context, bridgeID string) *Output {
	if h.redis == nil || !h.config.CacheEnabled || bridgeID == "" {
		return nil
	}
	payload, err := h.redis.Get(ctx, cacheKeyPrefix+bridgeID).Result()
	if err != nil {
		if err != redis.Nil {
			h.logger.Warn("bridge cache read failed", map[string]interface{}{"error": err})
		}
		return nil
	}
	var output Output
	if err := json.Unmarshal([]byte(payload), &output); err != nil {
		h.logger.Warn("bridge cache payload corrupt, dropping", map[string]interface{}{"error": err})
		return nil
	}
	return &output
}

func (h *Handler) toCache(ctx context.Context, bridgeID string, output *Output) {
	if h.redis == nil || !h.config.CacheEnabled || bridgeID == "" {
		return
	}
	payload, err := json.Marshal(output)
	if err != nil {
		return
	}
	if err := h.redis.Set(ctx, cacheKeyPrefix+bridgeID, payload, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("bridge cache write failed", map[string]interface{}{"error": err})
	}
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
