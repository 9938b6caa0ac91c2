// internal/workers/collateral/verify-collateral/handler_test.go
package verifycollateral

import (
	"context"
	"encoding/json"
	"testing"

	"creditflow-workers/internal/common/errors"
	"creditflow-workers/internal/common/logger"
	"creditflow-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	docs map[string][]byte
	fail bool
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{docs: map[string][]byte{}}
}

func (f *fakeIndexer) IndexDocument(_ context.Context, index, docID string, body []byte) error {
	if f.fail {
		return assert.AnError
	}
	f.docs[index+"/"+docID] = body
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func TestHandler_Execute_VerifiesBatch(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Applications: []models.Application{
			collateralApp("app-1"),
			{ApplicationID: "app-2", RequestedAmount: 30000, HasCollateral: false},
		},
		Seed: int64Ptr(42),
	})
	require.NoError(t, err)
	require.Len(t, output.Records, 2)

	total := 0
	for _, n := range output.StatusCounts {
		total += n
	}
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, output.StatusCounts[models.StatusMissing])
	assert.Equal(t, 0, output.TracesSaved)
}

func TestHandler_Execute_EmptyBatchIsFatal(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})
	assert.Nil(t, output)
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeEmptyBatch, stdErr.Code)
}

func TestHandler_Execute_SyntheticBatch(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Synthetic: &SyntheticSpec{Loans: 25, CollateralRatio: 0.8},
		Seed:      int64Ptr(7),
	})
	require.NoError(t, err)
	assert.Len(t, output.Records, 25)

	again, err := handler.Execute(context.Background(), &Input{
		Synthetic: &SyntheticSpec{Loans: 25, CollateralRatio: 0.8},
		Seed:      int64Ptr(7),
	})
	require.NoError(t, err)
	for i := range output.Records {
		assert.Equal(t, output.Records[i].CollateralStatus, again.Records[i].CollateralStatus)
		assert.Equal(t, output.Records[i].CollateralValue, again.Records[i].CollateralValue)
	}
}

func TestHandler_Execute_IndexesTraces(t *testing.T) {
	indexer := newFakeIndexer()
	config := LoadConfig()
	handler := NewHandler(config, indexer, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Applications: []models.Application{collateralApp("app-1")},
		Seed:         int64Ptr(42),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, output.TracesSaved)

	body, ok := indexer.docs[config.TraceIndex+"/app-1"]
	require.True(t, ok)

	var stored models.CollateralRecord
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.Equal(t, "app-1", stored.ApplicationID)
	assert.Equal(t, output.Records[0].CollateralStatus, stored.CollateralStatus)
	assert.NotEmpty(t, stored.WorkflowTrace)
}

func TestHandler_Execute_IndexFailureIsNonFatal(t *testing.T) {
	indexer := newFakeIndexer()
	indexer.fail = true
	handler := NewHandler(LoadConfig(), indexer, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Applications: []models.Application{collateralApp("app-1")},
		Seed:         int64Ptr(42),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, output.TracesSaved)
	assert.Len(t, output.Records, 1)
}
