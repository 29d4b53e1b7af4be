package discord

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/kzell/soundbank/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Stream = (*stream)(nil)

// stream plays one decoded clip over a voice connection. The PCM source
// is an ffmpeg subprocess decoding the stored file to 48 kHz stereo
// s16le on stdout.
type stream struct {
	vc  *discordgo.VoiceConnection
	pcm io.ReadCloser
	cmd *exec.Cmd

	mu      sync.Mutex
	cond    *sync.Cond
	volume  float64
	paused  bool
	stopped bool

	stopCh   chan struct{}
	stopOnce sync.Once

	done     chan error
	doneOnce sync.Once
}

// newStream spawns the ffmpeg decoder for path. The caller starts
// playback with [stream.run].
func newStream(vc *discordgo.VoiceConnection, path string) (*stream, error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-ar", fmt.Sprint(opusSampleRate),
		"-ac", fmt.Sprint(opusChannels),
		"-loglevel", "error",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("discord: ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("discord: start ffmpeg for %q: %w", path, err)
	}

	s := &stream{
		vc:     vc,
		pcm:    stdout,
		cmd:    cmd,
		volume: 1,
		stopCh: make(chan struct{}),
		done:   make(chan error, 1),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// run pumps PCM frames from ffmpeg through the Opus encoder into the
// voice connection until the clip ends or the stream is stopped.
func (s *stream) run() {
	defer s.pcm.Close()

	enc, err := newOpusEncoder()
	if err != nil {
		s.kill()
		s.finish(err)
		return
	}

	s.setSpeaking(true)
	defer s.setSpeaking(false)

	buf := make([]byte, frameBytes)
	for {
		if !s.waitWhilePaused() {
			_ = s.cmd.Wait()
			s.finish(nil)
			return
		}

		_, err := io.ReadFull(s.pcm, buf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// Clip finished; a trailing partial frame is dropped.
			break
		}
		if err != nil {
			_ = s.cmd.Wait()
			if s.isStopped() {
				s.finish(nil)
			} else {
				s.finish(fmt.Errorf("discord: read pcm: %w", err))
			}
			return
		}

		pcm := bytesToInt16s(buf)
		scaleVolume(pcm, s.Volume())

		packet, err := enc.encode(pcm)
		if err != nil {
			slog.Warn("discord: opus encode error", "err", err)
			continue
		}

		select {
		case s.vc.OpusSend <- packet:
		case <-s.stopCh:
			_ = s.cmd.Wait()
			s.finish(nil)
			return
		}
	}

	if err := s.cmd.Wait(); err != nil && !s.isStopped() {
		s.finish(fmt.Errorf("discord: ffmpeg: %w", err))
		return
	}
	s.finish(nil)
}

// Done implements [audio.Stream].
func (s *stream) Done() <-chan error {
	return s.done
}

// SetVolume implements [audio.Stream].
func (s *stream) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < 0 {
		v = 0
	}
	s.volume = v
}

// Volume implements [audio.Stream].
func (s *stream) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Pause implements [audio.Stream].
func (s *stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume implements [audio.Stream].
func (s *stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.cond.Broadcast()
}

// Paused implements [audio.Stream].
func (s *stream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Stop implements [audio.Stream]. Killing the decoder unblocks the
// playback loop, which then resolves Done with nil.
func (s *stream) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.stopCh)
		s.cond.Broadcast()
		s.kill()
	})
}

// waitWhilePaused blocks while the stream is paused. Returns false if
// the stream was stopped.
func (s *stream) waitWhilePaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.paused && !s.stopped {
		s.cond.Wait()
	}
	return !s.stopped
}

func (s *stream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *stream) kill() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// finish resolves Done exactly once.
func (s *stream) finish(err error) {
	s.doneOnce.Do(func() {
		s.done <- err
		close(s.done)
	})
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (s *stream) setSpeaking(b bool) {
	if err := s.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "err", err)
	}
}
