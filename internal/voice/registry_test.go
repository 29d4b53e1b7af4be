package voice_test

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kzell/soundbank/internal/observe"
	"github.com/kzell/soundbank/internal/voice"
	"github.com/kzell/soundbank/pkg/audio"
	"github.com/kzell/soundbank/pkg/audio/mock"
)

func newTestMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics() error: %v", err)
	}
	return m
}

func TestRegistry_PlayWithoutJoin(t *testing.T) {
	t.Parallel()

	r := voice.NewRegistry(&mock.Platform{}, newTestMetrics(t))

	if _, err := r.Play("G1", "/tmp/boom.mp3"); !errors.Is(err, voice.ErrNoActiveConnection) {
		t.Fatalf("Play() error = %v, want ErrNoActiveConnection", err)
	}
}

func TestRegistry_LeaveWithoutJoin(t *testing.T) {
	t.Parallel()

	r := voice.NewRegistry(&mock.Platform{}, newTestMetrics(t))

	if err := r.Leave("G1"); !errors.Is(err, voice.ErrNoActiveConnection) {
		t.Fatalf("Leave() error = %v, want ErrNoActiveConnection", err)
	}
}

func TestRegistry_JoinPlayLeave(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	conn := &mock.Connection{PlayResult: stream}
	platform := &mock.Platform{ConnectResult: conn}
	r := voice.NewRegistry(platform, newTestMetrics(t))

	if err := r.Join(context.Background(), "G1", "C1"); err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if got := platform.ConnectedChannels[0]; got != [2]string{"G1", "C1"} {
		t.Errorf("Connect called with %v, want [G1 C1]", got)
	}

	done, err := r.Play("G1", "/sounds/G1/boom.mp3")
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if conn.PlayedPaths[0] != "/sounds/G1/boom.mp3" {
		t.Errorf("Play called with %q", conn.PlayedPaths[0])
	}

	stream.Complete(nil)
	if err := <-done; err != nil {
		t.Fatalf("completion error: %v", err)
	}

	if err := r.Leave("G1"); err != nil {
		t.Fatalf("Leave() error: %v", err)
	}
	if conn.Disconnects() != 1 {
		t.Errorf("Disconnect called %d times, want 1", conn.Disconnects())
	}

	// The handle is gone after Leave.
	if err := r.Leave("G1"); !errors.Is(err, voice.ErrNoActiveConnection) {
		t.Fatalf("second Leave() error = %v, want ErrNoActiveConnection", err)
	}
}

func TestRegistry_JoinSupersedesPriorConnection(t *testing.T) {
	t.Parallel()

	oldStream := mock.NewStream()
	oldConn := &mock.Connection{PlayResult: oldStream}
	newConn := &mock.Connection{}

	conns := []audio.Connection{oldConn, newConn}
	platform := &mock.Platform{}
	platform.ConnectFunc = func(_ context.Context, _, _ string) (audio.Connection, error) {
		c := conns[0]
		conns = conns[1:]
		return c, nil
	}
	r := voice.NewRegistry(platform, newTestMetrics(t))

	ctx := context.Background()
	if err := r.Join(ctx, "G1", "C1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Play("G1", "a.mp3"); err != nil {
		t.Fatal(err)
	}

	// Joining a second channel releases the old handle and its stream.
	if err := r.Join(ctx, "G1", "C2"); err != nil {
		t.Fatal(err)
	}
	if oldConn.Disconnects() != 1 {
		t.Errorf("old connection Disconnect called %d times, want 1", oldConn.Disconnects())
	}
	if oldStream.CallCountStop == 0 {
		t.Error("old stream not stopped on supersede")
	}

	// The new handle has no stream yet.
	if err := r.Pause("G1"); !errors.Is(err, voice.ErrNoActiveStream) {
		t.Errorf("Pause() error = %v, want ErrNoActiveStream", err)
	}
}

func TestRegistry_StreamControlsRequireActiveStream(t *testing.T) {
	t.Parallel()

	r := voice.NewRegistry(&mock.Platform{ConnectResult: &mock.Connection{}}, newTestMetrics(t))
	if err := r.Join(context.Background(), "G1", "C1"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"SetVolume", func() error { return r.SetVolume("G1", 0.5) }},
		{"GetVolume", func() error { _, err := r.GetVolume("G1"); return err }},
		{"Pause", func() error { return r.Pause("G1") }},
		{"Resume", func() error { return r.Resume("G1") }},
		{"IsPaused", func() error { _, err := r.IsPaused("G1"); return err }},
		{"Stop", func() error { return r.Stop("G1") }},
	}
	for _, tt := range tests {
		if err := tt.call(); !errors.Is(err, voice.ErrNoActiveStream) {
			t.Errorf("%s error = %v, want ErrNoActiveStream", tt.name, err)
		}
	}
}

func TestRegistry_StreamControlsPassThrough(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	r := voice.NewRegistry(&mock.Platform{ConnectResult: &mock.Connection{PlayResult: stream}}, newTestMetrics(t))

	if err := r.Join(context.Background(), "G1", "C1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Play("G1", "a.mp3"); err != nil {
		t.Fatal(err)
	}

	if err := r.SetVolume("G1", 0.25); err != nil {
		t.Fatal(err)
	}
	if v, err := r.GetVolume("G1"); err != nil || v != 0.25 {
		t.Errorf("GetVolume() = %v, %v, want 0.25", v, err)
	}

	if err := r.Pause("G1"); err != nil {
		t.Fatal(err)
	}
	if paused, err := r.IsPaused("G1"); err != nil || !paused {
		t.Errorf("IsPaused() = %v, %v, want true", paused, err)
	}
	if err := r.Resume("G1"); err != nil {
		t.Fatal(err)
	}
	if paused, _ := r.IsPaused("G1"); paused {
		t.Error("stream still paused after Resume")
	}

	if err := r.Stop("G1"); err != nil {
		t.Fatal(err)
	}
	if stream.CallCountStop != 1 {
		t.Errorf("Stop called %d times on stream, want 1", stream.CallCountStop)
	}
}
