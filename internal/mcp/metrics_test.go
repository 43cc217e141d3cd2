package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cortex/internal/analysis"
	"github.com/fyrsmithlabs/cortex/internal/journal"
)

func TestMetrics_RecordInvocation(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newMetrics(mp.Meter(instrumentationName), zap.NewNop())

	ctx := context.Background()
	m.IncrementActive(ctx, "cortex_submit")
	m.RecordInvocation(ctx, "cortex_submit", 100*time.Millisecond, nil)
	m.RecordInvocation(ctx, "cortex_submit", 50*time.Millisecond, journal.ErrEmptyThought)
	m.DecrementActive(ctx, "cortex_submit")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["cortex.mcp.tool.invocations_total"])
	assert.Equal(t, int64(1), sums["cortex.mcp.tool.errors_total"])
	assert.Equal(t, int64(0), sums["cortex.mcp.tool.active_requests"])
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("submit failed: %w", journal.ErrEmptyThought), "validation_error"},
		{fmt.Errorf("%w: bad until", errInvalidArgument), "validation_error"},
		{fmt.Errorf("analyze thought: %w", analysis.ErrUnavailable), "unavailable"},
		{&analysis.APIError{StatusCode: 502, Message: "bad gateway"}, "upstream_error"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("disk full"), "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err))
	}
}
