// internal/workers/collateral/verify-collateral/handler.go
package verifycollateral

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creditflow-workers/internal/common/errors"
	"creditflow-workers/internal/common/logger"
	"creditflow-workers/internal/common/metrics"
	"creditflow-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "verify-collateral"
)

// TraceIndexer persists per-application stage traces for audit replay.
// *database.ElasticsearchClient satisfies it.
type TraceIndexer interface {
	IndexDocument(ctx context.Context, index, docID string, body []byte) error
}

type Handler struct {
	logger  logger.Logger
	errs    *errors.ErrorHandler
	config  *Config
	indexer TraceIndexer
}

// NewHandler builds the verification worker. indexer may be nil; traces are
// then kept only in the job output.
func NewHandler(config *Config, indexer TraceIndexer, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		logger:  scoped,
		errs:    errors.NewErrorHandler(scoped),
		config:  config,
		indexer: indexer,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	seed := h.config.Seed
	if input.Seed != nil {
		seed = *input.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	apps := input.Applications
	if input.Synthetic != nil {
		apps = GenerateSyntheticLoans(input.Synthetic.Loans, input.Synthetic.CollateralRatio, seed)
	}
	if len(apps) == 0 {
		return nil, errors.NewEmptyBatchError()
	}

	workflow := NewWorkflow(seed, DefaultProbabilities())
	records := workflow.EvaluateBatch(apps)

	statusCounts := map[string]int{}
	for _, record := range records {
		statusCounts[record.CollateralStatus]++
		for _, step := range record.WorkflowTrace {
			metrics.CollateralStageOutcomes.WithLabelValues(step.Stage, step.Decision).Inc()
		}
	}

	saved := h.indexTraces(ctx, records)

	h.logger.Info("collateral batch verified", map[string]interface{}{
		"rows":         len(records),
		"statusCounts": statusCounts,
		"tracesSaved":  saved,
	})

	return &Output{
		Records:      records,
		StatusCounts: statusCounts,
		TracesSaved:  saved,
	}, nil
}

// indexTraces is best effort: a failed write loses replayability for that
// row, never the verification result itself.
func (h *Handler) indexTraces(ctx context.Context, records []models.CollateralRecord) int {
	if h.indexer == nil {
		return 0
	}
	saved := 0
	for i := range records {
		body, err := json.Marshal(&records[i])
		if err != nil {
			continue
		}
		if err := h.indexer.IndexDocument(ctx, h.config.TraceIndex, records[i].ApplicationID, body); err != nil {
			h.logger.Warn("trace indexing failed", map[string]interface{}{
				"applicationId": records[i].ApplicationID,
				"error":         err,
			})
			continue
		}
		saved++
	}
	return saved
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
