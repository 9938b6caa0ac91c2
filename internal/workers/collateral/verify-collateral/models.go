// internal/workers/collateral/verify-collateral/models.go
package verifycollateral

import "creditflow-workers/internal/models"

type Input struct {
	Applications []models.Application `json:"applications"`
	Seed         *int64               `json:"seed,omitempty"`
	// Synthetic generates a demo batch instead of verifying Applications.
	Synthetic *SyntheticSpec `json:"synthetic,omitempty"`
}

type SyntheticSpec struct {
	Loans           int     `json:"loans"`
	CollateralRatio float64 `json:"collateralRatio"`
}

type Output struct {
	Records      []models.CollateralRecord `json:"records"`
	StatusCounts map[string]int            `json:"statusCounts"`
	TracesSaved  int                       `json:"tracesSaved"`
}
