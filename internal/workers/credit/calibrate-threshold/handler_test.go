// internal/workers/credit/calibrate-threshold/handler_test.go
package calibratethreshold

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"creditflow-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }

func TestHandler_Execute_FixedThresholdWins(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	rate := 0.3
	output, err := handler.Execute(context.Background(), &Input{
		Scores:             []float64{0.1, 0.9},
		Threshold:          floatPtr(0.65),
		TargetApprovalRate: &rate,
		RandomBand:         true,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.65, output.Threshold)
	assert.Equal(t, "fixed", output.Source)
}

func TestHandler_Execute_TargetApprovalRateQuantile(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	rng := rand.New(rand.NewSource(11))
	scores := make([]float64, 200)
	for i := range scores {
		scores[i] = rng.Float64()
	}

	rate := 0.25
	output, err := handler.Execute(context.Background(), &Input{
		Scores:             scores,
		TargetApprovalRate: &rate,
	})
	require.NoError(t, err)
	assert.Equal(t, "quantile", output.Source)

	approved := 0
	for _, s := range scores {
		if s >= output.Threshold {
			approved++
		}
	}
	expected := rate * float64(len(scores))
	assert.LessOrEqual(t, math.Abs(float64(approved)-expected), 1.0,
		"approved fraction should match the target rate within one row")
}

func TestHandler_Execute_DefaultThreshold(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Scores: []float64{0.4, 0.6}})
	require.NoError(t, err)

	assert.Equal(t, 0.5, output.Threshold)
	assert.Equal(t, "default", output.Source)
}

func TestHandler_Execute_RandomBandIsOptInAndBounded(t *testing.T) {
	handler := NewHandler(LoadConfig(), logger.NewTestLogger(t))

	for seed := int64(0); seed < 20; seed++ {
		output, err := handler.Execute(context.Background(), &Input{
			RandomBand: true,
			Seed:       int64Ptr(seed),
		})
		require.NoError(t, err)

		assert.Equal(t, "random_band", output.Source)
		assert.GreaterOrEqual(t, output.Threshold, 0.2)
		assert.LessOrEqual(t, output.Threshold, 0.6)
	}

	// Same seed, same draw.
	a, err := handler.Execute(context.Background(), &Input{RandomBand: true, Seed: int64Ptr(7)})
	require.NoError(t, err)
	b, err := handler.Execute(context.Background(), &Input{RandomBand: true, Seed: int64Ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, a.Threshold, b.Threshold)
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		q        float64
		expected float64
	}{
		{name: "empty defaults to midpoint", values: nil, q: 0.5, expected: 0.5},
		{name: "median of odd run", values: []float64{0.3, 0.1, 0.2}, q: 0.5, expected: 0.2},
		{name: "interpolated", values: []float64{0.0, 1.0}, q: 0.75, expected: 0.75},
		{name: "lower bound", values: []float64{0.4, 0.8}, q: 0, expected: 0.4},
		{name: "upper bound", values: []float64{0.4, 0.8}, q: 1, expected: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, quantile(tt.values, tt.q), 1e-9)
		})
	}
}
