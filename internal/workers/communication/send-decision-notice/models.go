// internal/workers/communication/send-decision-notice/models.go
package senddecisionnotice

import "creditflow-workers/internal/models"

type Input struct {
	Summary    models.BatchSummary `json:"summary"`
	Recipients []string            `json:"recipients,omitempty"` // email addresses
	Phones     []string            `json:"phones,omitempty"`     // E.164 numbers
	Priority   string              `json:"priority,omitempty"`   // "high" adds the SMS channel
}

type Output struct {
	NoticeID string   `json:"noticeId"`
	Status   string   `json:"status"` // "sent", "disabled"
	Channels []string `json:"channels,omitempty"`
	SentAt   string   `json:"sentAt"` // ISO 8601
}

const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"
)

const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelWebhook = "webhook"
)
