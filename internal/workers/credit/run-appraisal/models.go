// internal/workers/credit/run-appraisal/models.go
package runappraisal

import (
	"encoding/json"

	"creditflow-workers/internal/models"
)

type Input struct {
	// Rows is the raw tabular batch; alias resolution happens here, once.
	Rows []map[string]interface{} `json:"rows"`
	// Params overrides DefaultRunParams field by field. Validated against
	// the run-params schema before anything else runs.
	Params json.RawMessage `json:"params,omitempty"`
	// Bridge is the optional external collateral table.
	BridgeID   string                   `json:"bridgeId,omitempty"`
	BridgeRows []map[string]interface{} `json:"bridgeRows,omitempty"`
	Seed       *int64                   `json:"seed,omitempty"`
}

type Output struct {
	RunID        string                 `json:"runId"`
	Decisions    []models.FinalDecision `json:"decisions"`
	Explanations []models.Explanation   `json:"explanations"`
	Summary      models.BatchSummary    `json:"summary"`
}
