package voice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kzell/soundbank/internal/library"
	"github.com/kzell/soundbank/internal/observe"
)

// Controller plays a single clip end to end: resolve the alias, join the
// channel, stream the file, await completion, and leave. It is the only
// place join, play and leave are sequenced together.
type Controller struct {
	index    *library.Index
	registry *Registry
	metrics  *observe.Metrics

	// volume is applied to every new stream. 1 leaves clips unchanged.
	volume float64
}

// NewController creates a Controller. A defaultVolume of 0 means 1.
func NewController(index *library.Index, registry *Registry, metrics *observe.Metrics, defaultVolume float64) *Controller {
	if defaultVolume <= 0 {
		defaultVolume = 1
	}
	return &Controller{
		index:    index,
		registry: registry,
		metrics:  metrics,
		volume:   defaultVolume,
	}
}

// PlayAlias resolves alias in the guild's library and streams it into the
// given voice channel, blocking until the stream completes. Any failure
// after a successful Join still attempts to Leave so no connection handle
// is leaked.
func (c *Controller) PlayAlias(ctx context.Context, guildID, channelID, alias string) error {
	path, err := c.index.ResolvePath(guildID, alias)
	if err != nil {
		return err
	}

	if err := c.registry.Join(ctx, guildID, channelID); err != nil {
		return err
	}

	start := time.Now()
	err = c.playAndWait(ctx, guildID, path)

	if leaveErr := c.registry.Leave(guildID); leaveErr != nil {
		slog.Warn("voice: leave after playback failed", "guild_id", guildID, "err", leaveErr)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.SoundsPlayed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
	c.metrics.PlaybackDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		return fmt.Errorf("voice: play alias %q in guild %s: %w", alias, guildID, err)
	}
	return nil
}

// playAndWait starts the stream and blocks until it finishes or ctx is
// cancelled. Cancellation stops the stream before returning.
func (c *Controller) playAndWait(ctx context.Context, guildID, path string) error {
	done, err := c.registry.Play(guildID, path)
	if err != nil {
		return err
	}
	if c.volume != 1 {
		if err := c.registry.SetVolume(guildID, c.volume); err != nil {
			slog.Warn("voice: set default volume", "guild_id", guildID, "err", err)
		}
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if stopErr := c.registry.Stop(guildID); stopErr != nil {
			slog.Warn("voice: stop on cancellation", "guild_id", guildID, "err", stopErr)
		}
		return ctx.Err()
	}
}
