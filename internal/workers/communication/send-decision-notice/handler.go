// internal/workers/communication/send-decision-notice/handler.go
package senddecisionnotice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	commonaws "creditflow-workers/internal/common/aws"
	"creditflow-workers/internal/common/errors"
	commonhttp "creditflow-workers/internal/common/http"
	"creditflow-workers/internal/common/logger"
	"creditflow-workers/internal/common/metrics"
	"creditflow-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-decision-notice"
)

// Interfaces over the AWS clients so tests can mock them.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type WebhookService interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	errs      *errors.ErrorHandler
	sesClient SESService
	snsClient SNSService
	webhook   WebhookService
}

func NewHandler(config *Config, log logger.Logger) (*Handler, error) {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	h := &Handler{
		config: config,
		logger: scoped,
		errs:   errors.NewErrorHandler(scoped),
	}

	if config.EmailEnabled {
		sesClient, err := commonaws.NewSESClient(context.Background(), config.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("init SES client: %w", err)
		}
		h.sesClient = sesClient
	}
	if config.SMSEnabled {
		snsClient, err := commonaws.NewSNSClient(context.Background(), config.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("init SNS client: %w", err)
		}
		h.snsClient = snsClient
	}
	if config.WebhookEnabled {
		h.webhook = commonhttp.NewClient(config.Timeout)
	}

	return h, nil
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

// execute fans the batch summary out over every enabled channel. The notice
// counts as sent when at least one channel succeeds; a channel that errors
// while others succeed only logs. All attempted channels failing is a
// retryable job error.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	noticeID := uuid.NewString()
	sentAt := time.Now().UTC().Format(time.RFC3339)

	subject := noticeSubject(&input.Summary)
	body := noticeBody(&input.Summary)

	var sent []string
	attempts := 0
	var lastErr error

	if h.config.EmailEnabled && h.sesClient != nil && len(input.Recipients) > 0 {
		attempts++
		if err := h.sendEmail(ctx, input.Recipients, subject, body); err != nil {
			h.logger.Error("email notice failed", map[string]interface{}{
				"runId": input.Summary.RunID,
				"error": err,
			})
			lastErr = err
		} else {
			sent = append(sent, ChannelEmail)
		}
	}

	if h.config.SMSEnabled && h.snsClient != nil && len(input.Phones) > 0 && input.Priority == "high" {
		attempts++
		if err := h.sendSMS(ctx, input.Phones, smsBody(&input.Summary)); err != nil {
			h.logger.Error("SMS notice failed", map[string]interface{}{
				"runId": input.Summary.RunID,
				"error": err,
			})
			lastErr = err
		} else {
			sent = append(sent, ChannelSMS)
		}
	}

	if h.config.WebhookEnabled && h.webhook != nil && h.config.WebhookURL != "" {
		attempts++
		if err := h.postWebhook(ctx, noticeID, &input.Summary); err != nil {
			h.logger.Error("webhook notice failed", map[string]interface{}{
				"runId": input.Summary.RunID,
				"url":   h.config.WebhookURL,
				"error": err,
			})
			lastErr = err
		} else {
			sent = append(sent, ChannelWebhook)
		}
	}

	if attempts > 0 && len(sent) == 0 {
		return nil, errors.NewNotificationSendFailedError(lastErr)
	}

	status := StatusDisabled
	if len(sent) > 0 {
		status = StatusSent
	}

	h.logger.Info("decision notice processed", map[string]interface{}{
		"noticeId": noticeID,
		"runId":    input.Summary.RunID,
		"status":   status,
		"channels": sent,
	})

	return &Output{
		NoticeID: noticeID,
		Status:   status,
		Channels: sent,
		SentAt:   sentAt,
	}, nil
}

func (h *Handler) sendEmail(ctx context.Context, recipients []string, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: recipients,
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, phones []string, message string) error {
	for _, phone := range phones {
		input := &sns.PublishInput{
			PhoneNumber: aws.String(phone),
			Message:     aws.String(message),
		}
		if _, err := h.snsClient.Publish(ctx, input); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) postWebhook(ctx context.Context, noticeID string, summary *models.BatchSummary) error {
	payload, err := json.Marshal(map[string]interface{}{
		"noticeId": noticeID,
		"summary":  summary,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, h.config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.webhook.DoWithContext(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func noticeSubject(summary *models.BatchSummary) string {
	return fmt.Sprintf("Appraisal run %s complete: %d applications", summary.RunID, summary.Total)
}

func noticeBody(summary *models.BatchSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Appraisal run %s finished.\n\n", summary.RunID)
	fmt.Fprintf(&b, "Rule mode: %s\n", summary.RuleMode)
	fmt.Fprintf(&b, "Threshold: %.4f\n", summary.Threshold)
	fmt.Fprintf(&b, "Applications: %d\n\n", summary.Total)

	decisions := make([]string, 0, len(summary.Counts))
	for decision := range summary.Counts {
		decisions = append(decisions, decision)
	}
	sort.Strings(decisions)
	for _, decision := range decisions {
		fmt.Fprintf(&b, "  %s: %d\n", decision, summary.Counts[decision])
	}

	if len(summary.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings: %s\n", strings.Join(summary.Warnings, ", "))
	}
	return b.String()
}

func smsBody(summary *models.BatchSummary) string {
	approved := summary.Counts[models.DecisionApproved]
	return fmt.Sprintf("Run %s: %d/%d approved, threshold %.2f", summary.RunID, approved, summary.Total, summary.Threshold)
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
