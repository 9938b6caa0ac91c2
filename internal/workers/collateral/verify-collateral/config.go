// internal/workers/collateral/verify-collateral/config.go
package verifycollateral

import "time"

type Config struct {
	Timeout    time.Duration
	TraceIndex string
	// Seed pins the whole verification batch when nonzero.
	Seed int64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    60 * time.Second,
		TraceIndex: "collateral-verification-traces",
	}
}
