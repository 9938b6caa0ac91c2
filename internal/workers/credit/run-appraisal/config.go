// internal/workers/credit/run-appraisal/config.go
package runappraisal

import "time"

type Config struct {
	Timeout time.Duration
	// PersistRuns toggles writing run artifacts to Postgres.
	PersistRuns bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     120 * time.Second,
		PersistRuns: true,
	}
}
