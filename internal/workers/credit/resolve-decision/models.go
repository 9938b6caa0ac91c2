// internal/workers/credit/resolve-decision/models.go
package resolvedecision

import "creditflow-workers/internal/models"

type Input struct {
	Adjusted  []models.AdjustedScore             `json:"adjusted"`
	Verdicts  map[string]models.RuleVerdict      `json:"verdicts"`
	Lookup    map[string]models.CollateralRecord `json:"lookup,omitempty"`
	Threshold float64                            `json:"threshold"`
}

type Output struct {
	Decisions []models.FinalDecision `json:"decisions"`
	Counts    map[string]int         `json:"counts"`
}
