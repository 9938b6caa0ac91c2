// internal/workers/credit/adjust-collateral/models.go
package adjustcollateral

import "creditflow-workers/internal/models"

type Input struct {
	Applications []models.Application               `json:"applications"`
	Scores       []models.ScoreResult               `json:"scores"`
	Lookup       map[string]models.CollateralRecord `json:"lookup,omitempty"`
	TargetLTV    *float64                           `json:"targetLtv,omitempty"`
}

type Output struct {
	Adjusted []models.AdjustedScore `json:"adjusted"`
}
