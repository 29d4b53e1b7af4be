// Package voice tracks the bot's voice presence: at most one active
// connection per guild, and at most one playback stream per connection.
// The [Registry] owns both and exposes the stream's pass-through controls;
// the [Controller] sequences a full join → play → leave cycle for one clip.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kzell/soundbank/internal/observe"
	"github.com/kzell/soundbank/pkg/audio"
)

var (
	// ErrNoActiveConnection indicates the guild has no live voice
	// connection. Callers must Join first.
	ErrNoActiveConnection = errors.New("voice: no active connection")

	// ErrNoActiveStream indicates the guild has no in-flight playback
	// stream to control.
	ErrNoActiveStream = errors.New("voice: no active stream")
)

// guildSlot serializes voice operations for a single guild.
type guildSlot struct {
	mu     sync.Mutex
	conn   audio.Connection
	stream audio.Stream
}

// Registry keeps the per-guild connection and stream handles. Operations
// for the same guild serialize; different guilds proceed independently.
// All exported methods are safe for concurrent use.
type Registry struct {
	platform audio.Platform
	metrics  *observe.Metrics

	mu    sync.Mutex // guards slots map
	slots map[string]*guildSlot
}

// NewRegistry creates an empty registry joining channels through platform.
func NewRegistry(platform audio.Platform, metrics *observe.Metrics) *Registry {
	return &Registry{
		platform: platform,
		metrics:  metrics,
		slots:    make(map[string]*guildSlot),
	}
}

// Join connects to the given voice channel and stores the handle for the
// guild. A prior connection for the guild is released first; joining a
// new channel supersedes the old connection without an explicit Leave.
func (r *Registry) Join(ctx context.Context, guildID, channelID string) error {
	slot := r.slot(guildID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.conn != nil {
		r.release(slot, guildID)
	}

	conn, err := r.platform.Connect(ctx, guildID, channelID)
	if err != nil {
		return fmt.Errorf("voice: join guild %s: %w", guildID, err)
	}
	slot.conn = conn
	r.metrics.ActiveConnections.Add(ctx, 1)
	return nil
}

// Leave disconnects and removes the guild's handle. Returns
// [ErrNoActiveConnection] if the guild has none.
func (r *Registry) Leave(guildID string) error {
	slot := r.slot(guildID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.conn == nil {
		return fmt.Errorf("%w: guild %s", ErrNoActiveConnection, guildID)
	}
	r.release(slot, guildID)
	return nil
}

// Play starts streaming the file at path on the guild's connection and
// returns the stream's completion channel. A still-tracked prior stream
// is stopped first so at most one stream is live per guild. Returns
// [ErrNoActiveConnection] if Join was not called.
func (r *Registry) Play(guildID, path string) (<-chan error, error) {
	slot := r.slot(guildID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.conn == nil {
		return nil, fmt.Errorf("%w: guild %s", ErrNoActiveConnection, guildID)
	}
	if slot.stream != nil {
		slot.stream.Stop()
		slot.stream = nil
	}

	stream, err := slot.conn.Play(path)
	if err != nil {
		return nil, fmt.Errorf("voice: play %q in guild %s: %w", path, guildID, err)
	}
	slot.stream = stream
	return stream.Done(), nil
}

// SetVolume adjusts the guild's current stream volume.
func (r *Registry) SetVolume(guildID string, v float64) error {
	stream, err := r.activeStream(guildID)
	if err != nil {
		return err
	}
	stream.SetVolume(v)
	return nil
}

// GetVolume returns the guild's current stream volume.
func (r *Registry) GetVolume(guildID string) (float64, error) {
	stream, err := r.activeStream(guildID)
	if err != nil {
		return 0, err
	}
	return stream.Volume(), nil
}

// Pause suspends the guild's current stream.
func (r *Registry) Pause(guildID string) error {
	stream, err := r.activeStream(guildID)
	if err != nil {
		return err
	}
	stream.Pause()
	return nil
}

// Resume continues the guild's paused stream.
func (r *Registry) Resume(guildID string) error {
	stream, err := r.activeStream(guildID)
	if err != nil {
		return err
	}
	stream.Resume()
	return nil
}

// IsPaused reports whether the guild's current stream is paused.
func (r *Registry) IsPaused(guildID string) (bool, error) {
	stream, err := r.activeStream(guildID)
	if err != nil {
		return false, err
	}
	return stream.Paused(), nil
}

// Stop ends the guild's current stream early.
func (r *Registry) Stop(guildID string) error {
	stream, err := r.activeStream(guildID)
	if err != nil {
		return err
	}
	stream.Stop()
	return nil
}

// activeStream returns the guild's live stream or [ErrNoActiveStream].
func (r *Registry) activeStream(guildID string) (audio.Stream, error) {
	slot := r.slot(guildID)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.stream == nil {
		return nil, fmt.Errorf("%w: guild %s", ErrNoActiveStream, guildID)
	}
	return slot.stream, nil
}

// release stops the slot's stream and disconnects its connection.
// Called with the slot lock held.
func (r *Registry) release(slot *guildSlot, guildID string) {
	if slot.stream != nil {
		slot.stream.Stop()
		slot.stream = nil
	}
	if err := slot.conn.Disconnect(); err != nil {
		slog.Warn("voice: disconnect error", "guild_id", guildID, "err", err)
	}
	slot.conn = nil
	r.metrics.ActiveConnections.Add(context.Background(), -1)
}

func (r *Registry) slot(guildID string) *guildSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[guildID]
	if !ok {
		slot = &guildSlot{}
		r.slots[guildID] = slot
	}
	return slot
}
