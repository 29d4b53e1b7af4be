// Package observe provides application-wide observability primitives for
// soundbank: OpenTelemetry metrics with a Prometheus exporter bridge so
// they can be scraped from the standard /metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. Tests
// should use [NewMetrics] with their own [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all soundbank metrics.
const meterName = "github.com/kzell/soundbank"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types
// handle their own synchronisation.
type Metrics struct {
	// SoundsPlayed counts playback attempts. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	SoundsPlayed metric.Int64Counter

	// PlaybackDuration tracks wall time of one clip playback, join to leave.
	PlaybackDuration metric.Float64Histogram

	// UploadsCompleted counts finished add-sound flows.
	UploadsCompleted metric.Int64Counter

	// UploadErrors counts rejected or failed add-sound events. Use with
	// attribute: attribute.String("reason", ...)
	UploadErrors metric.Int64Counter

	// ActiveConnections tracks live voice connections across all guilds.
	ActiveConnections metric.Int64UpDownCounter
}

// playbackBuckets defines histogram bucket boundaries (in seconds) sized
// for short sound clips.
var playbackBuckets = []float64{
	0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SoundsPlayed, err = m.Int64Counter("soundbank.sounds.played",
		metric.WithDescription("Number of clip playback attempts."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("soundbank.playback.duration",
		metric.WithDescription("Wall time of one clip playback, join to leave."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(playbackBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UploadsCompleted, err = m.Int64Counter("soundbank.uploads.completed",
		metric.WithDescription("Number of completed add-sound flows."),
	); err != nil {
		return nil, err
	}
	if met.UploadErrors, err = m.Int64Counter("soundbank.uploads.errors",
		metric.WithDescription("Number of rejected or failed add-sound events."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConnections, err = m.Int64UpDownCounter("soundbank.voice.connections",
		metric.WithDescription("Live voice connections across all guilds."),
	); err != nil {
		return nil, err
	}
	return met, nil
}
