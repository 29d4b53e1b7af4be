package discord_test

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/kzell/soundbank/internal/discord"
	"github.com/kzell/soundbank/internal/discord/mock"
)

func message(content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			Content:   content,
			GuildID:   "G1",
			ChannelID: "C1",
			Author:    &discordgo.User{ID: "U1"},
		},
	}
}

func TestRouter_Dispatch(t *testing.T) {
	t.Parallel()

	r := discord.NewRouter()
	var gotCmd, gotFallback []string
	r.RegisterCommand("list", func(_ discord.MessageSender, _ *discordgo.MessageCreate, args []string) {
		gotCmd = append([]string{"list"}, args...)
	})
	r.SetFallback(func(_ discord.MessageSender, _ *discordgo.MessageCreate, args []string) {
		gotFallback = args
	})
	sender := &mock.MessageSender{}

	if r.Dispatch("!", sender, message("no prefix")) {
		t.Error("Dispatch() handled an unprefixed message")
	}
	if r.Dispatch("!", sender, message("!")) {
		t.Error("Dispatch() handled a bare prefix")
	}

	if !r.Dispatch("!", sender, message("!LIST extra")) {
		t.Fatal("Dispatch() did not route a registered command")
	}
	if len(gotCmd) != 2 || gotCmd[1] != "extra" {
		t.Errorf("command args = %v", gotCmd)
	}

	if !r.Dispatch("!", sender, message("!boom")) {
		t.Fatal("Dispatch() did not route to fallback")
	}
	if len(gotFallback) != 1 || gotFallback[0] != "boom" {
		t.Errorf("fallback args = %v", gotFallback)
	}
}

func TestRouter_NoFallbackRegistered(t *testing.T) {
	t.Parallel()

	r := discord.NewRouter()
	if r.Dispatch("!", &mock.MessageSender{}, message("!mystery")) {
		t.Error("Dispatch() claimed to handle an unknown word with no fallback")
	}
}
