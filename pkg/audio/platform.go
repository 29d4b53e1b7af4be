// Package audio defines the interfaces for voice-channel connectivity and
// sound clip playback within soundbank.
//
// The three abstractions are:
//
//   - [Platform] — joins a guild voice channel and returns a [Connection].
//   - [Connection] — an active session on that channel, able to start clip
//     playback and to disconnect.
//   - [Stream] — one in-flight clip playback with pass-through controls and
//     a completion signal.
//
// Implementations are provided by platform-specific adapter packages
// (e.g., audio/discord). The interfaces are intentionally narrow so the
// connection registry stays decoupled from provider details.
//
// This package lives under pkg/ because external platform adapters are
// expected to implement [Platform] and [Connection].
package audio

import "context"

// Stream represents one in-flight clip playback on a [Connection].
//
// Implementations must be safe for concurrent use.
type Stream interface {
	// Done returns a channel that delivers exactly one value when
	// playback ends: nil on normal completion (including [Stream.Stop]),
	// or the error that aborted the stream. The channel is closed after
	// the value is delivered.
	Done() <-chan error

	// SetVolume sets playback volume relative to the source: 1 is
	// unchanged, 0.5 is half, 2 is double.
	SetVolume(v float64)

	// Volume returns the current playback volume.
	Volume() float64

	// Pause suspends playback. Pausing an already-paused stream is a no-op.
	Pause()

	// Resume continues a paused stream.
	Resume()

	// Paused reports whether the stream is currently paused.
	Paused() bool

	// Stop ends playback early. Done resolves with nil. Safe to call
	// more than once.
	Stop()
}

// Connection represents an active voice-channel session for one guild.
//
// A Connection is obtained from [Platform.Connect] and remains valid until
// [Connection.Disconnect] is called. Implementations must be safe for
// concurrent use.
type Connection interface {
	// Play begins streaming the audio file at path into the channel and
	// returns the playback [Stream]. Overlap semantics for a second Play
	// while a stream is live are provider-defined; callers that need
	// one-at-a-time playback stop the prior stream first.
	Play(path string) (Stream, error)

	// Disconnect tears the connection down. Safe to call more than once;
	// subsequent calls are no-ops and return nil.
	Disconnect() error
}

// Platform is the entry point for a voice-channel provider.
// Implementations wrap provider-specific SDKs and must be safe for
// concurrent use.
type Platform interface {
	// Connect joins the voice channel identified by guildID and channelID.
	// The supplied ctx governs the connection attempt only; an established
	// Connection lives until [Connection.Disconnect].
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}
