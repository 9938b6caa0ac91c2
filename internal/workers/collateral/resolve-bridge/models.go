// internal/workers/collateral/resolve-bridge/models.go
package resolvebridge

import "creditflow-workers/internal/models"

type Input struct {
	// BridgeID identifies one uploaded bridge table; used as the cache key.
	BridgeID string                   `json:"bridgeId,omitempty"`
	JoinKey  string                   `json:"joinKey,omitempty"`
	Rows     []map[string]interface{} `json:"rows"`
}

type Output struct {
	Lookup   map[string]models.CollateralRecord `json:"lookup"`
	Summary  models.BridgeSummary               `json:"summary"`
	CacheHit bool                               `json:"cacheHit"`
}
