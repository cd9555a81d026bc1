package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewEngineMetrics_NilProviderRecordsNothing(t *testing.T) {
	m, err := NewEngineMetrics(nil)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAttemptStarted(ctx)
	m.RecordAttemptSubmitted(ctx, "COMPLETED")
	m.RecordGenerationTier(ctx, "generic_filler")
	m.RecordEligibilityDenied(ctx, "QUOTA_EXCEEDED")
}

func TestEngineMetrics_NilReceiverRecordsNothing(t *testing.T) {
	var m *EngineMetrics

	ctx := context.Background()
	m.RecordAttemptStarted(ctx)
	m.RecordAttemptSubmitted(ctx, "TIMEOUT")
	m.RecordGenerationTier(ctx, "ai_primary")
	m.RecordEligibilityDenied(ctx, "COOLDOWN_ACTIVE")
}

func TestEngineMetrics_RecordsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewEngineMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAttemptStarted(ctx)
	m.RecordAttemptStarted(ctx)
	m.RecordAttemptSubmitted(ctx, "COMPLETED")
	m.RecordAttemptSubmitted(ctx, "TIMEOUT")
	m.RecordGenerationTier(ctx, "ai_primary")
	m.RecordEligibilityDenied(ctx, "QUOTA_EXCEEDED")

	sums := collectCounterSums(t, reader)
	assert.Equal(t, int64(2), sums["quizforge.attempts.started"])
	assert.Equal(t, int64(2), sums["quizforge.attempts.submitted"])
	assert.Equal(t, int64(1), sums["quizforge.generation.tier"])
	assert.Equal(t, int64(1), sums["quizforge.eligibility.denied"])
}

func TestEngineMetrics_TierAttributeOnDataPoint(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewEngineMetrics(mp)
	require.NoError(t, err)

	m.RecordGenerationTier(context.Background(), "material_fallback")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			if mt.Name != "quizforge.generation.tier" {
				continue
			}
			sum, ok := mt.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			v, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("tier"))
			require.True(t, ok)
			assert.Equal(t, "material_fallback", v.AsString())
			found = true
		}
	}
	assert.True(t, found, "generation tier counter not collected")
}

// collectCounterSums flattens collected int64 sums by metric name
func collectCounterSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			sum, ok := mt.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			sums[mt.Name] = total
		}
	}
	return sums
}
