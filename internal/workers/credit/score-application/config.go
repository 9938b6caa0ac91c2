// internal/workers/credit/score-application/config.go
package scoreapplication

import "time"

type Config struct {
	Timeout   time.Duration
	ModelPath string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
