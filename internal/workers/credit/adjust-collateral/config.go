// internal/workers/credit/adjust-collateral/config.go
package adjustcollateral

import "time"

type Config struct {
	Timeout   time.Duration
	TargetLTV float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		TargetLTV: 0.8,
	}
}
