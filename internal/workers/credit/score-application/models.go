// internal/workers/credit/score-application/models.go
package scoreapplication

import "creditflow-workers/internal/models"

type Input struct {
	Applications []models.Application `json:"applications"`
}

type Output struct {
	Scores         []models.ScoreResult `json:"scores"`
	FeatureColumns []string             `json:"featureColumns"`
	FallbackUsed   bool                 `json:"fallbackUsed"`
}
