package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// MessageSender is the subset of *discordgo.Session used to send replies.
// Handlers take this interface so tests can record replies without a
// live gateway connection.
type MessageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// reply sends a plain text message to the channel, logging any failure.
func reply(s MessageSender, channelID, content string) {
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		slog.Warn("discord: failed to send reply", "channel_id", channelID, "err", err)
	}
}

// replyEmbed sends an embed to the channel, logging any failure.
func replyEmbed(s MessageSender, channelID string, embed *discordgo.MessageEmbed) {
	if _, err := s.ChannelMessageSendEmbed(channelID, embed); err != nil {
		slog.Warn("discord: failed to send embed", "channel_id", channelID, "err", err)
	}
}
