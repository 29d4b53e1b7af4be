// Package mock provides test doubles for Discord message testing.
package mock

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// SentMessage records one ChannelMessageSend call.
type SentMessage struct {
	ChannelID string
	Content   string
}

// SentEmbed records one ChannelMessageSendEmbed call.
type SentEmbed struct {
	ChannelID string
	Embed     *discordgo.MessageEmbed
}

// MessageSender records replies for test assertions. Safe for concurrent
// use; handlers may reply from background goroutines.
type MessageSender struct {
	mu sync.Mutex

	// Messages records all plain text replies, in order.
	Messages []SentMessage

	// Embeds records all embed replies, in order.
	Embeds []SentEmbed

	// Err, when non-nil, is returned by both send methods.
	Err error
}

// ChannelMessageSend records the reply and returns the configured error.
func (m *MessageSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, SentMessage{ChannelID: channelID, Content: content})
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-message"}, nil
}

// ChannelMessageSendEmbed records the embed and returns the configured error.
func (m *MessageSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Embeds = append(m.Embeds, SentEmbed{ChannelID: channelID, Embed: embed})
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-embed"}, nil
}

// LastMessage returns the most recently recorded text reply, or an empty
// SentMessage.
func (m *MessageSender) LastMessage() SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return SentMessage{}
	}
	return m.Messages[len(m.Messages)-1]
}

// MessageCount returns how many text replies were recorded.
func (m *MessageSender) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}
