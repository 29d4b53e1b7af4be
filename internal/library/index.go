package library

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
)

// Index is the in-memory view of every guild's sound library.
//
// Each guild is guarded by its own lock so mutations for one guild
// serialize against each other while other guilds proceed independently.
// All exported methods are safe for concurrent use.
type Index struct {
	store *ManifestStore

	mu     sync.RWMutex // guards the guilds map itself
	guilds map[string]*guildLibrary
}

// guildLibrary holds one guild's alias→filename mapping.
type guildLibrary struct {
	mu     sync.Mutex
	sounds map[string]string
	order  []string // aliases in insertion order, for stable listing
}

// NewIndex creates an empty Index backed by the given manifest store.
func NewIndex(store *ManifestStore) *Index {
	return &Index{
		store:  store,
		guilds: make(map[string]*guildLibrary),
	}
}

// NormalizeAlias lower-cases an alias. All lookups and commits apply it,
// making aliases case-insensitive.
func NormalizeAlias(alias string) string {
	return strings.ToLower(alias)
}

// InitializeAll loads the manifest for every given guild. A guild with
// no manifest gets an empty one created; a guild with a corrupt manifest
// is logged, left on disk untouched, and served from an empty in-memory
// library. Returns the joined non-recoverable errors, if any.
func (ix *Index) InitializeAll(guildIDs []string) error {
	var errs []error
	for _, id := range guildIDs {
		if err := ix.InitGuild(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InitGuild loads (or creates) the library for a single guild. Called at
// startup for every known guild and again whenever the bot joins a new
// one; re-initializing an already-loaded guild reloads it from disk.
func (ix *Index) InitGuild(guildID string) error {
	lib := ix.getOrCreate(guildID)
	lib.mu.Lock()
	defer lib.mu.Unlock()

	sounds, err := ix.store.Load(guildID)
	switch {
	case errors.Is(err, ErrManifestMissing):
		if err := ix.store.InitEmpty(guildID); err != nil {
			return fmt.Errorf("library: init guild %s: %w", guildID, err)
		}
		sounds = map[string]string{}
	case errors.Is(err, ErrManifestCorrupt):
		// Keep the bad file for inspection and run with an empty library.
		slog.Error("library: corrupt manifest, continuing with empty library",
			"guild_id", guildID, "err", err)
		sounds = map[string]string{}
	case err != nil:
		return err
	}

	lib.sounds = make(map[string]string, len(sounds))
	lib.order = lib.order[:0]
	for alias, file := range sounds {
		lib.sounds[NormalizeAlias(alias)] = file
		lib.order = append(lib.order, NormalizeAlias(alias))
	}
	return nil
}

// Exists reports whether the guild's library contains the alias.
// The lookup is case-insensitive. Unknown guilds report false.
func (ix *Index) Exists(guildID, alias string) bool {
	lib := ix.lookup(guildID)
	if lib == nil {
		return false
	}
	lib.mu.Lock()
	defer lib.mu.Unlock()
	_, ok := lib.sounds[NormalizeAlias(alias)]
	return ok
}

// List returns the guild's aliases in insertion order. The order is
// stable for a given in-memory state. Unknown or empty guilds yield nil.
func (ix *Index) List(guildID string) []string {
	lib := ix.lookup(guildID)
	if lib == nil {
		return nil
	}
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if len(lib.order) == 0 {
		return nil
	}
	out := make([]string, len(lib.order))
	copy(out, lib.order)
	return out
}

// ResolvePath returns the on-disk path of the audio file stored under
// alias. Returns [ErrAliasNotFound] if the guild or alias is unknown.
func (ix *Index) ResolvePath(guildID, alias string) (string, error) {
	lib := ix.lookup(guildID)
	if lib == nil {
		return "", fmt.Errorf("%w: %q in guild %s", ErrAliasNotFound, alias, guildID)
	}
	lib.mu.Lock()
	defer lib.mu.Unlock()
	file, ok := lib.sounds[NormalizeAlias(alias)]
	if !ok {
		return "", fmt.Errorf("%w: %q in guild %s", ErrAliasNotFound, alias, guildID)
	}
	return filepath.Join(ix.store.GuildDir(guildID), file), nil
}

// StorageDir returns the directory where the guild's audio files live.
func (ix *Index) StorageDir(guildID string) string {
	return ix.store.GuildDir(guildID)
}

// Commit inserts (or overwrites) an alias→filename entry in memory and
// writes the guild's full manifest through to disk before returning.
// A failed durable write is reported to the caller but does not roll
// back the in-memory entry; memory stays authoritative for the rest of
// the process lifetime.
func (ix *Index) Commit(guildID, alias, storedFilename string) error {
	alias = NormalizeAlias(alias)

	lib := ix.getOrCreate(guildID)
	lib.mu.Lock()
	defer lib.mu.Unlock()

	if lib.sounds == nil {
		lib.sounds = make(map[string]string)
	}
	if _, exists := lib.sounds[alias]; !exists {
		lib.order = append(lib.order, alias)
	}
	lib.sounds[alias] = storedFilename

	snapshot := make(map[string]string, len(lib.sounds))
	for k, v := range lib.sounds {
		snapshot[k] = v
	}
	if err := ix.store.Write(guildID, snapshot); err != nil {
		return fmt.Errorf("library: commit %q for guild %s: %w", alias, guildID, err)
	}
	return nil
}

func (ix *Index) lookup(guildID string) *guildLibrary {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.guilds[guildID]
}

func (ix *Index) getOrCreate(guildID string) *guildLibrary {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	lib, ok := ix.guilds[guildID]
	if !ok {
		lib = &guildLibrary{sounds: make(map[string]string)}
		ix.guilds[guildID] = lib
	}
	return lib
}
