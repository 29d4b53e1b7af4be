package library_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kzell/soundbank/internal/library"
)

func TestManifestStore_LoadMissing(t *testing.T) {
	t.Parallel()

	store := library.NewManifestStore(t.TempDir())
	_, err := store.Load("guild-1")
	if !errors.Is(err, library.ErrManifestMissing) {
		t.Fatalf("Load() error = %v, want ErrManifestMissing", err)
	}
}

func TestManifestStore_WriteLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := library.NewManifestStore(t.TempDir())
	want := map[string]string{"boom!": "boom_.mp3", "tada": "tada.wav"}

	if err := store.Write("guild-1", want); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	got, err := store.Load("guild-1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Load() returned %d entries, want %d", len(got), len(want))
	}
	for alias, file := range want {
		if got[alias] != file {
			t.Errorf("Load()[%q] = %q, want %q", alias, got[alias], file)
		}
	}
}

func TestManifestStore_InitEmptyIdempotent(t *testing.T) {
	t.Parallel()

	store := library.NewManifestStore(t.TempDir())

	if err := store.InitEmpty("guild-1"); err != nil {
		t.Fatalf("InitEmpty() error: %v", err)
	}
	got, err := store.Load("guild-1")
	if err != nil {
		t.Fatalf("Load() after InitEmpty error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Load() returned %d entries, want 0", len(got))
	}

	// A second InitEmpty must not clobber a populated manifest.
	if err := store.Write("guild-1", map[string]string{"pow": "pow.mp3"}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := store.InitEmpty("guild-1"); err != nil {
		t.Fatalf("second InitEmpty() error: %v", err)
	}
	got, err = store.Load("guild-1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got["pow"] != "pow.mp3" {
		t.Fatalf("InitEmpty overwrote existing manifest: %v", got)
	}
}

func TestManifestStore_LoadCorrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"not json", "this is not json"},
		{"wrong shape", `{"other": 3}`},
		{"sounds not object", `{"sounds": "nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			dir := filepath.Join(root, "guild-1")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(dir, "manifest.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			store := library.NewManifestStore(root)
			_, err := store.Load("guild-1")
			if !errors.Is(err, library.ErrManifestCorrupt) {
				t.Fatalf("Load() error = %v, want ErrManifestCorrupt", err)
			}

			// The bad file must be left in place.
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				t.Fatalf("manifest gone after failed Load: %v", readErr)
			}
			if string(data) != tt.content {
				t.Fatalf("manifest rewritten after failed Load: %q", data)
			}
		})
	}
}
