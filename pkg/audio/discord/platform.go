// Package discord provides an [audio.Platform] implementation backed by
// Discord voice channels via the bwmarrin/discordgo library. Stored clips
// are decoded to PCM with an ffmpeg subprocess, encoded to Opus with gopus,
// and sent over the voice connection's OpusSend channel.
//
// The platform requires an active *discordgo.Session (owned by the bot
// layer). Each call to [Platform.Connect] joins the specified voice channel
// of a guild and returns a [Connection] that can play one clip at a time.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/kzell/soundbank/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Platform   = (*Platform)(nil)
	_ audio.Connection = (*Connection)(nil)
)

// Platform implements [audio.Platform] using discordgo voice connections.
// It is safe for concurrent use.
type Platform struct {
	session *discordgo.Session
}

// New creates a Discord Platform for the given session.
func New(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

// Connect joins the voice channel identified by guildID and channelID.
// The ctx governs the connection-setup phase only.
func (p *Platform) Connect(_ context.Context, guildID, channelID string) (audio.Connection, error) {
	// mute=false (we send audio), deaf=true (we never consume input).
	vc, err := p.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q in guild %q: %w", channelID, guildID, err)
	}
	return &Connection{vc: vc, guildID: guildID}, nil
}

// Connection implements [audio.Connection] over a discordgo voice
// connection.
type Connection struct {
	vc      *discordgo.VoiceConnection
	guildID string

	mu     sync.Mutex
	closed bool
}

// Play starts streaming the audio file at path and returns its
// [audio.Stream]. Decoding runs in an ffmpeg subprocess; playback runs on
// a background goroutine until the file ends or the stream is stopped.
func (c *Connection) Play(path string) (audio.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("discord: play on disconnected connection for guild %q", c.guildID)
	}

	s, err := newStream(c.vc, path)
	if err != nil {
		return nil, err
	}
	go s.run()
	return s, nil
}

// Disconnect leaves the voice channel. Subsequent calls are no-ops.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.vc.Disconnect(); err != nil {
		return fmt.Errorf("discord: disconnect guild %q: %w", c.guildID, err)
	}
	return nil
}
