// internal/workers/collateral/resolve-bridge/handler_test.go
package resolvebridge

import (
	"context"
	"testing"
	"time"

	"creditflow-workers/internal/common/errors"
	"creditflow-workers/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bridgeRow(id string, status string, value float64, include bool) map[string]interface{} {
	return map[string]interface{}{
		"Application ID":    id,
		"Collateral-Value":  value,
		"collateral_status": status,
		"include_in_credit": include,
		"confidence":        0.9,
		"legitimacy_score":  0.95,
		"asset_type":        "real_estate",
	}
}

func TestHandler_Execute_NormalizesColumnsAndJoinKey(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	input := &Input{
		JoinKey: "Application ID",
		Rows: []map[string]interface{}{
			bridgeRow("APP-1", "validated", 250000, true),
			bridgeRow("APP-2", "fraudulent", 90000, false),
		},
	}

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "application_id", output.Summary.JoinKey)
	assert.Len(t, output.Lookup, 2)

	record, ok := output.Lookup["app-1"]
	require.True(t, ok)
	assert.Equal(t, "validated", record.CollateralStatus)
	assert.Equal(t, 250000.0, record.CollateralValue)
	assert.Equal(t, "real_estate", record.AssetType)
	assert.True(t, record.IncludeInCredit)

	assert.Equal(t, 2, output.Summary.Rows)
	assert.Equal(t, 1, output.Summary.StatusCounts["validated"])
	assert.Equal(t, 1, output.Summary.StatusCounts["fraudulent"])
	assert.Equal(t, 1, output.Summary.IncludedRows)
	assert.Equal(t, 1, output.Summary.ExcludedRows)
	assert.Empty(t, output.Summary.Warnings)
}

func TestHandler_Execute_MissingTableIsWarningNotError(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Rows: nil})
	require.NoError(t, err)

	assert.Empty(t, output.Lookup)
	assert.Contains(t, output.Summary.Warnings, errors.WarnBridgeTableMissing)
}

func TestHandler_Execute_JoinKeyNotFound(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	input := &Input{
		JoinKey: "loan_reference",
		Rows: []map[string]interface{}{
			{"application_id": "app-1", "collateral_value": 10000},
		},
	}

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Empty(t, output.Lookup)
	assert.Equal(t, 1, output.Summary.Rows)
	assert.Contains(t, output.Summary.Warnings, errors.WarnJoinKeyNotFound)
}

func TestHandler_Execute_ParsesLastUpdatedTimestamp(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	updated := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	row := bridgeRow("app-1", "validated", 250000, true)
	row["last_updated"] = updated.Format(time.RFC3339)
	malformed := bridgeRow("app-2", "validated", 90000, true)
	malformed["last_updated"] = "yesterday"

	output, err := handler.Execute(context.Background(), &Input{
		Rows: []map[string]interface{}{row, malformed},
	})
	require.NoError(t, err)

	record, ok := output.Lookup["app-1"]
	require.True(t, ok)
	assert.True(t, record.LastUpdated.Equal(updated))

	// Unparseable timestamps degrade to the zero value, never an error.
	record, ok = output.Lookup["app-2"]
	require.True(t, ok)
	assert.True(t, record.LastUpdated.IsZero())
}

func TestHandler_Execute_NumericJoinValues(t *testing.T) {
	handler := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	input := &Input{
		Rows: []map[string]interface{}{
			// JSON numbers arrive as float64.
			{"application_id": float64(1042), "collateral_value": 5000.0},
		},
	}

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	_, ok := output.Lookup["1042"]
	assert.True(t, ok)
}

func TestHandler_Execute_CacheRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	handler := NewHandler(LoadConfig(), rdb, logger.NewTestLogger(t))

	input := &Input{
		BridgeID: "upload-7",
		Rows: []map[string]interface{}{
			bridgeRow("app-1", "validated", 120000, true),
		},
	}

	first, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// Second resolution of the same upload must come from the snapshot.
	second, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Lookup, second.Lookup)
	assert.Equal(t, first.Summary, second.Summary)

	assert.True(t, srv.Exists(cacheKeyPrefix+"upload-7"))
}

func TestHandler_Execute_CacheFailureDegradesToResolve(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(cacheKeyPrefix + "upload-9").SetErr(assert.AnError)
	mock.Regexp().ExpectSet(cacheKeyPrefix+"upload-9", `.*`, time.Hour).SetVal("OK")

	handler := NewHandler(LoadConfig(), rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		BridgeID: "upload-9",
		Rows: []map[string]interface{}{
			bridgeRow("app-1", "validated", 120000, true),
		},
	})
	require.NoError(t, err)
	assert.False(t, output.CacheHit)
	assert.Len(t, output.Lookup, 1)
}
