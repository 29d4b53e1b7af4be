// Package upload implements the interactive add-sound flow: a short-lived
// per-user session that collects an audio file and an alias across
// separate Discord messages, then commits the pair to the guild's sound
// library.
//
// A session moves through
//
//	(none) → awaiting file → awaiting name → committed
//
// in either field order; it completes once both the file and the name
// have arrived. Sessions expire after a fixed timeout and at most one
// session exists per user. All handling for one user is serialized by a
// per-user lock so an expiry timer can never race an in-flight
// completion.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kzell/soundbank/internal/library"
)

// DefaultTTL is how long an unfinished session survives.
const DefaultTTL = 30 * time.Minute

// collisionRetries bounds the randomized-suffix search for a free
// stored filename.
const collisionRetries = 10

var (
	// ErrNoSession indicates the user has no open add-sound session.
	ErrNoSession = errors.New("upload: no open session")

	// ErrTooManyAttachments indicates a message carried more than one file.
	ErrTooManyAttachments = errors.New("upload: more than one attachment")

	// ErrFileNotYetProvided indicates a name arrived before any file.
	ErrFileNotYetProvided = errors.New("upload: file not yet provided")

	// ErrEmptyAlias indicates the supplied sound name was blank.
	ErrEmptyAlias = errors.New("upload: empty sound name")
)

// Attachment describes one inbound file attachment.
type Attachment struct {
	URL      string
	Filename string
}

// Result reports what a session event accomplished.
type Result struct {
	// Completed is true when the event finished the session and the
	// sound was committed to the guild library.
	Completed bool

	// Alias is the normalized alias. Set when Completed.
	Alias string

	// StoredFile is the filename the sound landed under in the guild's
	// storage directory. Set when Completed.
	StoredFile string
}

// session holds the partial input for one user's add-sound flow.
type session struct {
	guildID   string
	filePath  string // temp file, empty until an attachment arrived
	alias     string // raw user text, empty until a name arrived
	createdAt time.Time
	gen       uint64
	timer     *time.Timer
}

// userSlot serializes all session handling for a single user.
// Slots are created on demand and kept for the process lifetime.
type userSlot struct {
	mu   sync.Mutex
	sess *session
}

// Manager owns every open upload session and their expiry timers.
// All exported methods are safe for concurrent use; events for the same
// user serialize, events for different users proceed independently.
type Manager struct {
	index      *library.Index
	downloader Downloader
	tempDir    string
	ttl        time.Duration

	mu    sync.Mutex // guards slots map
	slots map[string]*userSlot
	gen   uint64
}

// NewManager creates a Manager that stores in-flight downloads under
// tempDir and commits finished sounds through index. A ttl of zero
// means [DefaultTTL].
func NewManager(index *library.Index, downloader Downloader, tempDir string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		index:      index,
		downloader: downloader,
		tempDir:    tempDir,
		ttl:        ttl,
		slots:      make(map[string]*userSlot),
	}
}

// Start opens a session for the user in the given guild. An existing
// session for the user is discarded and restarted.
func (m *Manager) Start(guildID, userID string) {
	slot := m.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.sess != nil {
		m.remove(slot)
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	sess := &session{
		guildID:   guildID,
		createdAt: time.Now().UTC(),
		gen:       gen,
	}
	sess.timer = time.AfterFunc(m.ttl, func() { m.expire(userID, gen) })
	slot.sess = sess

	slog.Info("upload: session started", "guild_id", guildID, "user_id", userID)
}

// HasSession reports whether the user currently has an open session.
// The bot routes messages from such users to the Manager instead of the
// command dispatcher.
func (m *Manager) HasSession(userID string) bool {
	slot := m.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.sess != nil
}

// HandleAttachment processes a message carrying attachments for a user
// with an open session. Exactly one attachment is accepted per message.
// The file is downloaded to a per-user temp path before this returns, so
// a later name message always observes the finished download. A second
// attachment from the same user overwrites the first.
func (m *Manager) HandleAttachment(ctx context.Context, userID string, atts []Attachment) (Result, error) {
	slot := m.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	sess := slot.sess
	if sess == nil {
		return Result{}, ErrNoSession
	}
	if len(atts) == 0 {
		return Result{}, errors.New("upload: message carried no attachments")
	}
	if len(atts) > 1 {
		return Result{}, fmt.Errorf("%w: got %d", ErrTooManyAttachments, len(atts))
	}
	att := atts[0]

	dest := filepath.Join(m.tempDir, userID+fileExt(att.Filename))
	if err := os.MkdirAll(m.tempDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("upload: create temp dir: %w", err)
	}
	if err := m.downloader.Download(ctx, att.URL, dest); err != nil {
		return Result{}, err
	}
	sess.filePath = dest

	return m.maybeComplete(slot, userID)
}

// HandleText processes a plain message from a user with an open session,
// treating it as the sound name. Rejects a name sent before any file so
// the user can retry after uploading one.
func (m *Manager) HandleText(_ context.Context, userID, text string) (Result, error) {
	slot := m.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	sess := slot.sess
	if sess == nil {
		return Result{}, ErrNoSession
	}
	if sess.filePath == "" {
		return Result{}, ErrFileNotYetProvided
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyAlias
	}
	sess.alias = text

	return m.maybeComplete(slot, userID)
}

// Cancel abandons the user's session, removing its temp file and timer.
func (m *Manager) Cancel(userID string) error {
	slot := m.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.sess == nil {
		return ErrNoSession
	}
	m.remove(slot)
	slog.Info("upload: session cancelled", "user_id", userID)
	return nil
}

// maybeComplete commits the session once both fields are present.
// Called with the slot lock held.
func (m *Manager) maybeComplete(slot *userSlot, userID string) (Result, error) {
	sess := slot.sess
	if sess.filePath == "" || sess.alias == "" {
		return Result{}, nil
	}

	alias := library.NormalizeAlias(sess.alias)
	dir := m.index.StorageDir(sess.guildID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		sess.alias = ""
		return Result{}, fmt.Errorf("upload: create storage dir: %w", err)
	}

	stored, err := freeFilename(dir, sanitizeAlias(alias), fileExt(sess.filePath))
	if err != nil {
		sess.alias = ""
		return Result{}, err
	}

	if err := copyFile(sess.filePath, filepath.Join(dir, stored)); err != nil {
		// Keep the session open with its file so the user can resend
		// the name and retry the commit.
		sess.alias = ""
		return Result{}, fmt.Errorf("upload: store sound file: %w", err)
	}

	if err := m.index.Commit(sess.guildID, alias, stored); err != nil {
		// The in-memory library holds the entry; only the durable write
		// failed. Memory stays authoritative until the process exits.
		slog.Warn("upload: manifest write failed after commit",
			"guild_id", sess.guildID, "alias", alias, "err", err)
	}

	m.remove(slot)

	slog.Info("upload: sound added",
		"guild_id", sess.guildID, "user_id", userID, "alias", alias, "file", stored)
	return Result{Completed: true, Alias: alias, StoredFile: stored}, nil
}

// remove drops the slot's session, stopping its timer and deleting any
// downloaded temp file. Called with the slot lock held.
func (m *Manager) remove(slot *userSlot) {
	slot.sess.timer.Stop()
	if slot.sess.filePath != "" {
		os.Remove(slot.sess.filePath)
	}
	slot.sess = nil
}

// expire is the timer callback. The generation check makes a stale timer
// harmless when the user has since restarted or completed a session.
func (m *Manager) expire(userID string, gen uint64) {
	slot := m.slot(userID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.sess == nil || slot.sess.gen != gen {
		return
	}
	m.remove(slot)
	slog.Info("upload: session expired", "user_id", userID)
}

func (m *Manager) slot(userID string) *userSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[userID]
	if !ok {
		slot = &userSlot{}
		m.slots[userID] = slot
	}
	return slot
}

// sanitizeAlias reduces an already-lowercased alias to [a-z0-9_].
func sanitizeAlias(alias string) string {
	var b strings.Builder
	b.Grow(len(alias))
	for _, r := range alias {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// fileExt returns the lowercased extension of name, or "" if it has none.
func fileExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// freeFilename derives a stored filename from base+ext that does not
// collide with an existing file in dir, appending a random suffix and
// re-checking until the name is free.
func freeFilename(dir, base, ext string) (string, error) {
	name := base + ext
	for range collisionRetries {
		_, err := os.Stat(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("upload: probe stored filename: %w", err)
		}
		name = base + "_" + uuid.NewString()[:8] + ext
	}
	return "", fmt.Errorf("upload: no free filename for %q after %d attempts", base+ext, collisionRetries)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
