// internal/workers/communication/send-decision-notice/config.go
package senddecisionnotice

import "time"

type Config struct {
	EmailEnabled   bool
	SMSEnabled     bool
	WebhookEnabled bool
	FromEmail      string
	AWSRegion      string
	SMSSenderID    string
	WebhookURL     string
	Timeout        time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
