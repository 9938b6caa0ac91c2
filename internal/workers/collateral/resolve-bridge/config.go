// internal/workers/collateral/resolve-bridge/config.go
package resolvebridge

import "time"

type Config struct {
	Timeout      time.Duration
	JoinKey      string
	CacheTTL     time.Duration
	CacheEnabled bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		JoinKey:      "application_id",
		CacheTTL:     time.Hour,
		CacheEnabled: true,
	}
}
