// Package library owns the per-guild sound libraries: the durable
// manifest files on disk and the in-memory index the bot queries.
//
// On disk each guild gets its own directory under the sounds root,
// holding the audio files plus a manifest.json of the form
//
//	{ "sounds": { "alias": "stored_filename.mp3", ... } }
//
// The manifest is the source of truth across restarts; the [Index]
// caches it in memory and writes through on every mutation.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// manifestName is the manifest file name within each guild directory.
const manifestName = "manifest.json"

var (
	// ErrManifestMissing indicates a guild has no persisted manifest yet.
	ErrManifestMissing = errors.New("library: manifest missing")

	// ErrManifestCorrupt indicates a manifest exists but does not parse
	// as the expected document.
	ErrManifestCorrupt = errors.New("library: manifest corrupt")

	// ErrAliasNotFound indicates a lookup for an alias the guild's
	// library does not contain.
	ErrAliasNotFound = errors.New("library: alias not found")
)

// manifest is the on-disk document for one guild.
type manifest struct {
	Sounds map[string]string `json:"sounds"`
}

// ManifestStore reads and writes per-guild manifest files under a root
// sounds directory. It performs no caching; the [Index] layers that on top.
type ManifestStore struct {
	root string
}

// NewManifestStore creates a store rooted at dir. The directory is
// created lazily on first write.
func NewManifestStore(dir string) *ManifestStore {
	return &ManifestStore{root: dir}
}

// GuildDir returns the storage directory for a guild's audio files.
func (s *ManifestStore) GuildDir(guildID string) string {
	return filepath.Join(s.root, guildID)
}

func (s *ManifestStore) manifestPath(guildID string) string {
	return filepath.Join(s.root, guildID, manifestName)
}

// Load reads the persisted alias→filename mapping for a guild.
// Returns [ErrManifestMissing] if the guild has no manifest and
// [ErrManifestCorrupt] if the file exists but is not a valid document.
func (s *ManifestStore) Load(guildID string) (map[string]string, error) {
	data, err := os.ReadFile(s.manifestPath(guildID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrManifestMissing
	}
	if err != nil {
		return nil, fmt.Errorf("library: read manifest for guild %s: %w", guildID, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: guild %s: %v", ErrManifestCorrupt, guildID, err)
	}
	if m.Sounds == nil {
		return nil, fmt.Errorf("%w: guild %s: no sounds object", ErrManifestCorrupt, guildID)
	}
	return m.Sounds, nil
}

// InitEmpty creates a well-formed empty manifest for a guild that has
// none. Idempotent: an existing manifest, empty or populated, is left
// untouched.
func (s *ManifestStore) InitEmpty(guildID string) error {
	if err := os.MkdirAll(s.GuildDir(guildID), 0o755); err != nil {
		return fmt.Errorf("library: create guild dir %s: %w", guildID, err)
	}

	_, err := os.Stat(s.manifestPath(guildID))
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("library: stat manifest for guild %s: %w", guildID, err)
	}
	return s.Write(guildID, map[string]string{})
}

// Write replaces the persisted manifest for a guild with the given
// mapping. The document is written to a temporary file and renamed into
// place, so a concurrent Load observes either the old or the new
// content, never a torn write.
func (s *ManifestStore) Write(guildID string, sounds map[string]string) error {
	if err := os.MkdirAll(s.GuildDir(guildID), 0o755); err != nil {
		return fmt.Errorf("library: create guild dir %s: %w", guildID, err)
	}

	data, err := json.MarshalIndent(manifest{Sounds: sounds}, "", "  ")
	if err != nil {
		return fmt.Errorf("library: marshal manifest for guild %s: %w", guildID, err)
	}
	data = append(data, '\n')

	path := s.manifestPath(guildID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("library: write manifest for guild %s: %w", guildID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("library: replace manifest for guild %s: %w", guildID, err)
	}
	return nil
}
