package observe_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kzell/soundbank/internal/observe"
)

func TestNewMetrics_AllInstrumentsCreated(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error: %v", err)
	}

	if m.SoundsPlayed == nil || m.PlaybackDuration == nil ||
		m.UploadsCompleted == nil || m.UploadErrors == nil ||
		m.ActiveConnections == nil {
		t.Fatal("NewMetrics() left an instrument nil")
	}
}

func TestMetrics_RecordAndCollect(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error: %v", err)
	}

	ctx := context.Background()
	m.SoundsPlayed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "ok")))
	m.SoundsPlayed.Add(ctx, 2, metric.WithAttributes(attribute.String("status", "ok")))
	m.ActiveConnections.Add(ctx, 1)
	m.ActiveConnections.Add(ctx, -1)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error: %v", err)
	}

	var playedTotal int64
	var connTotal int64
	for _, scope := range rm.ScopeMetrics {
		for _, met := range scope.Metrics {
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch met.Name {
				case "soundbank.sounds.played":
					playedTotal += dp.Value
				case "soundbank.voice.connections":
					connTotal += dp.Value
				}
			}
		}
	}
	if playedTotal != 3 {
		t.Errorf("sounds.played total = %d, want 3", playedTotal)
	}
	if connTotal != 0 {
		t.Errorf("voice.connections total = %d, want 0", connTotal)
	}
}
