// internal/workers/credit/calibrate-threshold/models.go
package calibratethreshold

type Input struct {
	Scores             []float64 `json:"scores"`
	Threshold          *float64  `json:"threshold,omitempty"`
	TargetApprovalRate *float64  `json:"targetApprovalRate,omitempty"`
	RandomBand         bool      `json:"randomBand,omitempty"`
	// Seed pins the random-band draw for reproducible demo runs.
	Seed *int64 `json:"seed,omitempty"`
}

type Output struct {
	Threshold float64 `json:"threshold"`
	Source    string  `json:"thresholdSource"` // fixed | quantile | default | random_band
}
