// Package discord provides the Discord bot layer for soundbank. It owns
// the discordgo.Session lifecycle, routes inbound messages either to the
// add-sound upload flow or to prefix command handlers, and initializes
// guild libraries when the bot joins a guild.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/kzell/soundbank/pkg/audio"
	discordaudio "github.com/kzell/soundbank/pkg/audio/discord"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string

	// Prefix is the command prefix (e.g., "!").
	Prefix string
}

// Bot owns the Discord gateway connection and routes message events.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	platform  *discordaudio.Platform
	prefix    string
	handlers  *Handlers
	router    *Router
	closeOnce sync.Once
}

// New creates a Bot and connects to Discord. Command handlers are wired
// afterwards with [Bot.Bind]; until then inbound messages are ignored.
func New(_ context.Context, cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	return &Bot{
		session:  session,
		platform: discordaudio.New(session),
		prefix:   cfg.Prefix,
	}, nil
}

// Platform returns the audio.Platform for voice channel connections.
func (b *Bot) Platform() audio.Platform {
	return b.platform
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// GuildIDs returns the IDs of every guild the bot is currently in.
func (b *Bot) GuildIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.session.State.Guilds))
	for _, g := range b.session.State.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

// Bind attaches the command handlers and registers the gateway event
// handlers. The supplied ctx is the base context for playback started
// from commands.
func (b *Bot) Bind(ctx context.Context, h *Handlers) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h.baseCtx = ctx
	h.Prefix = b.prefix
	if h.VoiceChannelOf == nil {
		h.VoiceChannelOf = b.voiceChannelOf
	}

	router := NewRouter()
	h.Register(router)

	b.handlers = h
	b.router = router

	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(s, m)
	})
	b.session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		b.handleGuildCreate(s, g)
	})
}

// Run blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("discord bot ready", "prefix", b.prefix)
	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}

// voiceChannelOf returns the voice channel userID currently occupies in
// the guild, consulting gateway state.
func (b *Bot) voiceChannelOf(guildID, userID string) (string, bool) {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return "", false
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}

// handleMessage is the event-dispatch boundary for inbound messages.
// A user with an open upload session gets routed to the upload flow
// first; everything else goes through the command router. Panics are
// recovered here so a handler bug never takes the process down.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("discord: panic in message handler", "panic", r, "guild_id", m.GuildID)
		}
	}()

	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		// DMs carry no guild scope; the soundboard is guild-only.
		return
	}

	b.mu.RLock()
	h, router := b.handlers, b.router
	b.mu.RUnlock()
	if h == nil {
		return
	}

	if h.Uploads.HasSession(m.Author.ID) && !isCommand(m.Content, b.prefix, "cancel") {
		h.SessionMessage(s, m)
		return
	}

	router.Dispatch(b.prefix, s, m)
}

// handleGuildCreate initializes the library of a newly joined guild.
func (b *Bot) handleGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("discord: panic in guild handler", "panic", r, "guild_id", g.ID)
		}
	}()

	b.mu.RLock()
	h := b.handlers
	b.mu.RUnlock()
	if h == nil {
		return
	}

	if err := h.Index.InitGuild(g.ID); err != nil {
		slog.Error("discord: initialize guild library", "guild_id", g.ID, "err", err)
		return
	}
	slog.Info("discord: guild library ready", "guild_id", g.ID, "name", g.Name)
}
