// internal/workers/credit/score-application/handler.go
package scoreapplication

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
	TaskType = "score-application"
)

type Handler struct {
	logger logger.Logger
	errs   *errors.ErrorHandler
	model  Model
}

func NewHandler(config *Config, model Model, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		logger: scoped,
		errs:   errors.NewErrorHandler(scoped),
		model:  model,
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errs.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if len(input.Applications) == 0 {
		return nil, errors.NewEmptyBatchError()
	}
	if h.model == nil {
		return nil, errors.NewModelNotLoadedError("no model injected into score-application handler")
	}

	features := h.model.Features()
	usable := h.usableFeatures(features, input.Applications)
	if len(usable) == 0 {
		return nil, errors.NewNoUsableFeaturesError(fmt.Sprintf("model features %v resolve in no batch column", features))
	}

	proba, hasProba := h.model.(ProbabilityModel)

	scores := make([]models.ScoreResult, 0, len(input.Applications))
	fallbackUsed := false
	for _, app := range input.Applications {
		vector := h.alignRow(features, &app)

		var score float64
		var fellBack bool
		if hasProba {
			p, err := proba.PredictProba(vector)
			if err != nil {
				return nil, errors.NewModelInferenceFailedError(fmt.Errorf("application %s: %w", app.ApplicationID, err))
			}
			score = p
		} else {
			pred, err := h.model.Predict(vector)
			if err != nil {
				return nil, errors.NewModelInferenceFailedError(fmt.Errorf("application %s: %w", app.ApplicationID, err))
			}
			// Legacy transform for classifiers without calibrated
			// probabilities: maps class 0 to ~0.083 and class 1 to ~0.917.
			score = (pred + 0.1) / 1.2
			fellBack = true
		}

		score = clip01(score)
		if fellBack && !fallbackUsed {
			fallbackUsed = true
			h.logger.Warn("model exposes no probability, using prediction fallback", map[string]interface{}{
				"warning": errors.WarnProbabilityFallback,
			})
		}

		scores = append(scores, models.ScoreResult{
			ApplicationID: app.ApplicationID,
			BaseScore:     score,
			Fallback:      fellBack,
		})
	}

	h.logger.Info("batch scored", map[string]interface{}{
		"rows":         len(scores),
		"features":     len(usable),
		"fallbackUsed": fallbackUsed,
	})

	return &Output{
		Scores:         scores,
		FeatureColumns: usable,
		FallbackUsed:   fallbackUsed,
	}, nil
}

// usableFeatures returns the model features that resolve in at least one row.
// An empty result means the batch shares no columns with the model, which is a
// configuration error rather than a data quality issue.
func (h *Handler) usableFeatures(features []string, apps []models.Application) []string {
	usable := make([]string, 0, len(features))
	for _, f := range features {
		key := models.NormalizeKey(f)
		for i := range apps {
			if _, ok := apps[i].Numeric[key]; ok {
				usable = append(usable, f)
				break
			}
		}
	}
	return usable
}

// alignRow builds the feature vector in model order. Columns the row does not
// carry contribute 0.0.
func (h *Handler) alignRow(features []string, app *models.Application) []float64 {
	vector := make([]float64, len(features))
	for i, f := range features {
		if v, ok := app.Numeric[models.NormalizeKey(f)]; ok {
			vector[i] = v
		}
	}
	return vector
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
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
