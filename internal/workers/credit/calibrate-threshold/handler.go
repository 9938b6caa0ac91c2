// internal/workers/credit/calibrate-threshold/handler.go
package calibratethreshold

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"creditflow-workers/internal/common/errors"
	"creditflow-workers/internal/common/logger"
	"creditflow-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "calibrate-threshold"
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

// Precedence: explicit fixed threshold, then target approval rate, then the
// 0.5 default. The random band replaces the default only when explicitly
// enabled; it is demo variability, never production semantics.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	var output *Output
	switch {
	case input.Threshold != nil:
		output = &Output{Threshold: *input.Threshold, Source: "fixed"}

	case input.TargetApprovalRate != nil && *input.TargetApprovalRate > 0 && *input.TargetApprovalRate < 1:
		q := quantile(input.Scores, 1-*input.TargetApprovalRate)
		output = &Output{Threshold: q, Source: "quantile"}

	case input.RandomBand:
		rng := rand.New(rand.NewSource(seedFor(input)))
		output = &Output{Threshold: 0.2 + rng.Float64()*0.4, Source: "random_band"}

	default:
		output = &Output{Threshold: h.config.DefaultThreshold, Source: "default"}
	}

	h.logger.Info("threshold calibrated", map[string]interface{}{
		"threshold": output.Threshold,
		"source":    output.Source,
	})
	return output, nil
}

func seedFor(input *Input) int64 {
	if input.Seed != nil {
		return *input.Seed
	}
	return time.Now().UnixNano()
}

// quantile computes the q-th quantile with linear interpolation between the
// two nearest order statistics.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0.5
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
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
