package voice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kzell/soundbank/internal/library"
	"github.com/kzell/soundbank/internal/voice"
	"github.com/kzell/soundbank/pkg/audio/mock"
)

func newTestController(t *testing.T, conn *mock.Connection) (*voice.Controller, *voice.Registry, *library.Index) {
	t.Helper()
	index := library.NewIndex(library.NewManifestStore(t.TempDir()))
	registry := voice.NewRegistry(&mock.Platform{ConnectResult: conn}, newTestMetrics(t))
	return voice.NewController(index, registry, newTestMetrics(t), 1), registry, index
}

func TestController_PlayAliasFullSequence(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	conn := &mock.Connection{PlayResult: stream}
	ctrl, registry, index := newTestController(t, conn)

	if err := index.Commit("G1", "boom!", "boom_.mp3"); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		stream.Complete(nil)
	}()

	if err := ctrl.PlayAlias(context.Background(), "G1", "C1", "Boom!"); err != nil {
		t.Fatalf("PlayAlias() error: %v", err)
	}

	if conn.CallCountPlay != 1 {
		t.Errorf("Play called %d times, want 1", conn.CallCountPlay)
	}
	if conn.Disconnects() != 1 {
		t.Errorf("Disconnect called %d times, want 1", conn.Disconnects())
	}

	// The registry handle is released after the sequence.
	if err := registry.Leave("G1"); !errors.Is(err, voice.ErrNoActiveConnection) {
		t.Errorf("Leave() after PlayAlias error = %v, want ErrNoActiveConnection", err)
	}
}

func TestController_UnknownAlias(t *testing.T) {
	t.Parallel()

	conn := &mock.Connection{}
	ctrl, _, _ := newTestController(t, conn)

	err := ctrl.PlayAlias(context.Background(), "G1", "C1", "nope")
	if !errors.Is(err, library.ErrAliasNotFound) {
		t.Fatalf("PlayAlias() error = %v, want ErrAliasNotFound", err)
	}
	if conn.CallCountPlay != 0 {
		t.Error("Play was called for an unknown alias")
	}
}

func TestController_PlayFailureStillLeaves(t *testing.T) {
	t.Parallel()

	conn := &mock.Connection{PlayError: errors.New("encoder exploded")}
	ctrl, _, index := newTestController(t, conn)

	if err := index.Commit("G1", "boom", "boom.mp3"); err != nil {
		t.Fatal(err)
	}

	if err := ctrl.PlayAlias(context.Background(), "G1", "C1", "boom"); err == nil {
		t.Fatal("PlayAlias() succeeded despite play failure")
	}
	if conn.Disconnects() != 1 {
		t.Errorf("Disconnect called %d times after play failure, want 1", conn.Disconnects())
	}
}

func TestController_StreamErrorPropagates(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	conn := &mock.Connection{PlayResult: stream}
	ctrl, _, index := newTestController(t, conn)

	if err := index.Commit("G1", "boom", "boom.mp3"); err != nil {
		t.Fatal(err)
	}

	streamErr := errors.New("voice gateway dropped")
	go stream.Complete(streamErr)

	err := ctrl.PlayAlias(context.Background(), "G1", "C1", "boom")
	if !errors.Is(err, streamErr) {
		t.Fatalf("PlayAlias() error = %v, want %v", err, streamErr)
	}
	if conn.Disconnects() != 1 {
		t.Errorf("Disconnect called %d times after stream error, want 1", conn.Disconnects())
	}
}

func TestController_CancellationStopsStream(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	conn := &mock.Connection{PlayResult: stream}
	ctrl, _, index := newTestController(t, conn)

	if err := index.Commit("G1", "boom", "boom.mp3"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := ctrl.PlayAlias(ctx, "G1", "C1", "boom")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("PlayAlias() error = %v, want context.Canceled", err)
	}
	if stream.CallCountStop == 0 {
		t.Error("stream not stopped on cancellation")
	}
	if conn.Disconnects() != 1 {
		t.Errorf("Disconnect called %d times after cancellation, want 1", conn.Disconnects())
	}
}

func TestController_DefaultVolumeApplied(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	conn := &mock.Connection{PlayResult: stream}
	index := library.NewIndex(library.NewManifestStore(t.TempDir()))
	registry := voice.NewRegistry(&mock.Platform{ConnectResult: conn}, newTestMetrics(t))
	ctrl := voice.NewController(index, registry, newTestMetrics(t), 0.5)

	if err := index.Commit("G1", "boom", "boom.mp3"); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		stream.Complete(nil)
	}()
	if err := ctrl.PlayAlias(context.Background(), "G1", "C1", "boom"); err != nil {
		t.Fatal(err)
	}
	if v := stream.Volume(); v != 0.5 {
		t.Errorf("stream volume = %v, want 0.5", v)
	}
}
