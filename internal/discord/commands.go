package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kzell/soundbank/internal/library"
	"github.com/kzell/soundbank/internal/observe"
	"github.com/kzell/soundbank/internal/upload"
	"github.com/kzell/soundbank/internal/voice"
)

// Handlers implements the bot's command set over injected collaborators.
type Handlers struct {
	Prefix     string
	Index      *library.Index
	Uploads    *upload.Manager
	Controller *voice.Controller
	Registry   *voice.Registry
	Metrics    *observe.Metrics

	// VoiceChannelOf returns the voice channel the user currently
	// occupies in the guild. The bot wires this to gateway state;
	// tests substitute their own.
	VoiceChannelOf func(guildID, userID string) (string, bool)

	// baseCtx is the context under which command-started playback runs.
	// Set by [Bot.Bind]; defaults to context.Background().
	baseCtx context.Context
}

func (h *Handlers) ctx() context.Context {
	if h.baseCtx == nil {
		return context.Background()
	}
	return h.baseCtx
}

// Register wires every command into the router. Unmatched words fall
// through to alias playback, matching the original soundboard UX where
// the sound name is the command.
func (h *Handlers) Register(r *Router) {
	r.RegisterCommand("ping", h.Ping)
	r.RegisterCommand("list", h.List)
	r.RegisterCommand("add", h.Add)
	r.RegisterCommand("cancel", h.Cancel)
	r.RegisterCommand("stop", h.StopCmd)
	r.RegisterCommand("pause", h.PauseCmd)
	r.RegisterCommand("resume", h.ResumeCmd)
	r.RegisterCommand("volume", h.VolumeCmd)
	r.SetFallback(h.PlaySound)
}

// Ping replies with a pong embed.
func (h *Handlers) Ping(s MessageSender, m *discordgo.MessageCreate, _ []string) {
	replyEmbed(s, m.ChannelID, &discordgo.MessageEmbed{Title: "Pong!"})
}

// List replies with the guild's aliases, one per line.
func (h *Handlers) List(s MessageSender, m *discordgo.MessageCreate, _ []string) {
	aliases := h.Index.List(m.GuildID)
	if len(aliases) == 0 {
		reply(s, m.ChannelID, "No sounds added!")
		return
	}
	reply(s, m.ChannelID, strings.Join(aliases, "\n"))
}

// Add opens an upload session for the author. An existing session is
// restarted.
func (h *Handlers) Add(s MessageSender, m *discordgo.MessageCreate, _ []string) {
	h.Uploads.Start(m.GuildID, m.Author.ID)
	reply(s, m.ChannelID, fmt.Sprintf(
		"Upload the sound file you want to add, then send a name for it. `%scancel` aborts.", h.Prefix))
}

// Cancel abandons the author's upload session.
func (h *Handlers) Cancel(s MessageSender, m *discordgo.MessageCreate, _ []string) {
	if err := h.Uploads.Cancel(m.Author.ID); err != nil {
		reply(s, m.ChannelID, "You have no open add-sound session.")
		return
	}
	reply(s, m.ChannelID, "Add-sound session cancelled.")
}

// StopCmd ends the guild's current playback.
func (h *Handlers) StopCmd(s MessageSender, m *discordgo.MessageCreate, _ []string) {
	if err := h.Registry.Stop(m.GuildID); err != nil {
		replyStreamError(s, m.ChannelID, err)
	}
}

// PauseCmd pauses the guild's current playback.
func (h *Handlers) PauseCmd(s MessageSender, m *discordgo.MessageCreate, _ []string) {
	if err := h.Registry.Pause(m.GuildID); err != nil {
		replyStreamError(s, m.ChannelID, err)
	}
}

// ResumeCmd resumes the guild's paused playback.
func (h *Handlers) ResumeCmd(s MessageSender, m *discordgo.MessageCreate, _ []string) {
	if err := h.Registry.Resume(m.GuildID); err != nil {
		replyStreamError(s, m.ChannelID, err)
	}
}

// VolumeCmd reports or adjusts the current stream volume.
func (h *Handlers) VolumeCmd(s MessageSender, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		v, err := h.Registry.GetVolume(m.GuildID)
		if err != nil {
			replyStreamError(s, m.ChannelID, err)
			return
		}
		reply(s, m.ChannelID, fmt.Sprintf("Volume: %.2f", v))
		return
	}

	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil || v < 0 || v > 2 {
		reply(s, m.ChannelID, "Usage: volume <0..2>")
		return
	}
	if err := h.Registry.SetVolume(m.GuildID, v); err != nil {
		replyStreamError(s, m.ChannelID, err)
	}
}

// PlaySound is the fallback for unmatched command words: the word is
// treated as a sound alias and played in the author's voice channel.
func (h *Handlers) PlaySound(s MessageSender, m *discordgo.MessageCreate, args []string) {
	alias := args[0]
	if !h.Index.Exists(m.GuildID, alias) {
		reply(s, m.ChannelID, "That sound doesn't exist!")
		return
	}

	channelID, ok := h.VoiceChannelOf(m.GuildID, m.Author.ID)
	if !ok {
		reply(s, m.ChannelID, "Join a voice channel first!")
		return
	}

	// Playback blocks until the clip ends; run it off the event path.
	go func() {
		if err := h.Controller.PlayAlias(h.ctx(), m.GuildID, channelID, alias); err != nil {
			slog.Warn("discord: playback failed",
				"guild_id", m.GuildID, "alias", alias, "err", err)
			reply(s, m.ChannelID, "Couldn't play that sound.")
		}
	}()
}

// SessionMessage routes a message from a user with an open upload
// session: attachments feed the file step, plain text feeds the name step.
func (h *Handlers) SessionMessage(s MessageSender, m *discordgo.MessageCreate) {
	ctx := h.ctx()

	if len(m.Attachments) > 0 {
		atts := make([]upload.Attachment, 0, len(m.Attachments))
		for _, a := range m.Attachments {
			atts = append(atts, upload.Attachment{URL: a.URL, Filename: a.Filename})
		}
		res, err := h.Uploads.HandleAttachment(ctx, m.Author.ID, atts)
		h.replyUpload(s, m.ChannelID, res, err, "File received! Now send a name for the sound.")
		return
	}

	res, err := h.Uploads.HandleText(ctx, m.Author.ID, m.Content)
	h.replyUpload(s, m.ChannelID, res, err, "Almost there — upload the sound file to finish.")
}

// replyUpload turns an upload result into a user-facing reply and
// records the outcome.
func (h *Handlers) replyUpload(s MessageSender, channelID string, res upload.Result, err error, progress string) {
	switch {
	case err == nil && res.Completed:
		h.Metrics.UploadsCompleted.Add(h.ctx(), 1)
		reply(s, channelID, fmt.Sprintf("Added sound `%s`!", res.Alias))
	case err == nil:
		reply(s, channelID, progress)
	case errors.Is(err, upload.ErrTooManyAttachments):
		h.countUploadError("too_many_attachments")
		reply(s, channelID, "Please send exactly one file.")
	case errors.Is(err, upload.ErrFileNotYetProvided):
		h.countUploadError("file_not_yet_provided")
		reply(s, channelID, "Send the sound file first, then its name.")
	case errors.Is(err, upload.ErrEmptyAlias):
		h.countUploadError("empty_name")
		reply(s, channelID, "The sound name can't be empty.")
	case errors.Is(err, upload.ErrNoSession):
		// Session expired between routing and handling; treat like any
		// non-session message.
	default:
		h.countUploadError("io")
		slog.Error("discord: upload step failed", "err", err)
		reply(s, channelID, "Something went wrong with that file — try again.")
	}
}

func (h *Handlers) countUploadError(reason string) {
	h.Metrics.UploadErrors.Add(h.ctx(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

// replyStreamError phrases registry control errors for the user.
func replyStreamError(s MessageSender, channelID string, err error) {
	switch {
	case errors.Is(err, voice.ErrNoActiveStream), errors.Is(err, voice.ErrNoActiveConnection):
		reply(s, channelID, "Nothing is playing right now.")
	default:
		slog.Warn("discord: stream control failed", "err", err)
		reply(s, channelID, "Couldn't control playback.")
	}
}
