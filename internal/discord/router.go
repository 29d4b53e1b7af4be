package discord

import (
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc is the signature for prefix command handlers. args holds
// the whitespace-split tokens after the command word.
type HandlerFunc func(s MessageSender, m *discordgo.MessageCreate, args []string)

// Router dispatches prefix commands to registered handlers. A message
// whose command word matches no registered handler falls through to the
// fallback, which the bot uses for bare sound aliases.
type Router struct {
	mu       sync.RWMutex
	commands map[string]HandlerFunc
	fallback HandlerFunc
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{commands: make(map[string]HandlerFunc)}
}

// RegisterCommand registers a handler for a command word. The word is
// matched case-insensitively.
func (r *Router) RegisterCommand(name string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(name)] = handler
}

// SetFallback registers the handler invoked for prefixed words that are
// not registered commands. args[0] is the unmatched word.
func (r *Router) SetFallback(handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = handler
}

// Dispatch routes a message to its handler. Messages without the prefix
// are ignored. Returns true if a handler ran.
func (r *Router) Dispatch(prefix string, s MessageSender, m *discordgo.MessageCreate) bool {
	if !strings.HasPrefix(m.Content, prefix) {
		return false
	}

	tokens := strings.Fields(strings.TrimPrefix(m.Content, prefix))
	if len(tokens) == 0 {
		return false
	}
	word := strings.ToLower(tokens[0])

	r.mu.RLock()
	handler, ok := r.commands[word]
	fallback := r.fallback
	r.mu.RUnlock()

	switch {
	case ok:
		handler(s, m, tokens[1:])
	case fallback != nil:
		fallback(s, m, tokens)
	default:
		return false
	}
	return true
}

// isCommand reports whether content invokes the named command.
func isCommand(content, prefix, name string) bool {
	if !strings.HasPrefix(content, prefix) {
		return false
	}
	tokens := strings.Fields(strings.TrimPrefix(content, prefix))
	return len(tokens) > 0 && strings.EqualFold(tokens[0], name)
}
