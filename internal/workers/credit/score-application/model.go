// internal/workers/credit/score-application/model.go
package scoreapplication

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Model is the trained-classifier handle consumed by the scoring adapter.
// Predict returns the discrete class (0 or 1) for one feature vector.
type Model interface {
	Features() []string
	Predict(features []float64) (float64, error)
}

// ProbabilityModel is implemented by models that expose a calibrated
// probability of approval. When absent, the adapter falls back to a
// transform of the discrete prediction.
type ProbabilityModel interface {
	PredictProba(features []float64) (float64, error)
}

// LogisticModel scores with a fixed coefficient vector. Coefficients are
// exported by the training pipeline as JSON; training itself is out of scope.
type LogisticModel struct {
	FeatureNames []string  `json:"features"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
}

func (m *LogisticModel) Features() []string {
	return m.FeatureNames
}

func (m *LogisticModel) PredictProba(features []float64) (float64, error) {
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("feature vector length %d does not match %d weights", len(features), len(m.Weights))
	}
	z := m.Bias
	for i, w := range m.Weights {
		z += w * features[i]
	}
	return 1.0 / (1.0 + math.Exp(-z)), nil
}

func (m *LogisticModel) Predict(features []float64) (float64, error) {
	p, err := m.PredictProba(features)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

// LoadLogisticModel reads exported model coefficients from a JSON file.
func LoadLogisticModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model file: %w", err)
	}
	if len(m.FeatureNames) == 0 || len(m.FeatureNames) != len(m.Weights) {
		return nil, fmt.Errorf("model file %s has %d features and %d weights", path, len(m.FeatureNames), len(m.Weights))
	}
	return &m, nil
}
