// Package mock provides in-memory mock implementations of the
// [audio.Platform], [audio.Connection], and [audio.Stream] interfaces for
// use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	stream := mock.NewStream()
//	conn := &mock.Connection{PlayResult: stream}
//	platform := &mock.Platform{ConnectResult: conn}
//	got, err := platform.Connect(ctx, "guild-1", "channel-42")
package mock

import (
	"context"
	"sync"

	"github.com/kzell/soundbank/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Platform   = (*Platform)(nil)
	_ audio.Connection = (*Connection)(nil)
	_ audio.Stream     = (*Stream)(nil)
)

// ─── Platform ─────────────────────────────────────────────────────────────────

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectResult is returned by Connect when ConnectError is nil.
	ConnectResult audio.Connection

	// ConnectError, when set, is returned by Connect.
	ConnectError error

	// ConnectFunc, when set, overrides ConnectResult/ConnectError and is
	// invoked for every Connect call.
	ConnectFunc func(ctx context.Context, guildID, channelID string) (audio.Connection, error)

	// CallCountConnect records how many times Connect was called.
	CallCountConnect int

	// ConnectedChannels records every (guildID, channelID) pair passed
	// to Connect, in order.
	ConnectedChannels [][2]string
}

// Connect implements [audio.Platform].
func (p *Platform) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	p.CallCountConnect++
	p.ConnectedChannels = append(p.ConnectedChannels, [2]string{guildID, channelID})
	fn := p.ConnectFunc
	res, err := p.ConnectResult, p.ConnectError
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, guildID, channelID)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ─── Connection ───────────────────────────────────────────────────────────────

// Connection is a mock implementation of [audio.Connection].
type Connection struct {
	mu sync.Mutex

	// PlayResult is returned by Play when PlayError is nil.
	PlayResult audio.Stream

	// PlayError, when set, is returned by Play.
	PlayError error

	// DisconnectError is returned by Disconnect.
	DisconnectError error

	// CallCountPlay records how many times Play was called.
	CallCountPlay int

	// PlayedPaths records every path passed to Play, in order.
	PlayedPaths []string

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int
}

// Play implements [audio.Connection].
func (c *Connection) Play(path string) (audio.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountPlay++
	c.PlayedPaths = append(c.PlayedPaths, path)
	if c.PlayError != nil {
		return nil, c.PlayError
	}
	return c.PlayResult, nil
}

// Disconnect implements [audio.Connection].
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountDisconnect++
	return c.DisconnectError
}

// Disconnects returns how many times Disconnect was called.
func (c *Connection) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCountDisconnect
}

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.Stream]. Tests resolve it by
// calling [Stream.Complete] or [Stream.Stop].
type Stream struct {
	mu sync.Mutex

	volume float64
	paused bool

	done     chan error
	doneOnce sync.Once

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// CallCountPause and CallCountResume record control calls.
	CallCountPause  int
	CallCountResume int
}

// NewStream creates a mock stream with volume 1 and an unresolved Done
// channel.
func NewStream() *Stream {
	return &Stream{volume: 1, done: make(chan error, 1)}
}

// Complete resolves the stream's Done channel with err.
func (s *Stream) Complete(err error) {
	s.doneOnce.Do(func() {
		s.done <- err
		close(s.done)
	})
}

// Done implements [audio.Stream].
func (s *Stream) Done() <-chan error { return s.done }

// SetVolume implements [audio.Stream].
func (s *Stream) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

// Volume implements [audio.Stream].
func (s *Stream) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Pause implements [audio.Stream].
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountPause++
	s.paused = true
}

// Resume implements [audio.Stream].
func (s *Stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountResume++
	s.paused = false
}

// Paused implements [audio.Stream].
func (s *Stream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Stop implements [audio.Stream]. It resolves Done with nil.
func (s *Stream) Stop() {
	s.mu.Lock()
	s.CallCountStop++
	s.mu.Unlock()
	s.Complete(nil)
}
