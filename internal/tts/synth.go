package tts

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"strings"
	"time"
)

// Backend turns text into an encoded audio stream.
type Backend interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
	// Format is the file extension of the produced audio, e.g. "mp3".
	Format() string
}

type Player interface {
	PlayFile(ctx context.Context, path string) error
}

type Ducker interface {
	Duck(ctx context.Context) error
	Unduck(ctx context.Context) error
}

// Synthesizer speaks text through a remote backend. The audio is staged in a
// temp file that is removed once playback ends, whatever the outcome.
type Synthesizer struct {
	backend Backend
	player  Player
	ducker  Ducker
	tempDir string
	timeout time.Duration
}

type Option func(*Synthesizer)

func WithDucker(d Ducker) Option { return func(s *Synthesizer) { s.ducker = d } }

func WithTempDir(dir string) Option { return func(s *Synthesizer) { s.tempDir = dir } }

func WithTimeout(d time.Duration) Option { return func(s *Synthesizer) { s.timeout = d } }

func NewSynthesizer(backend Backend, player Player, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		backend: backend,
		player:  player,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak blocks until text has been played.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	log.Debug("Speaking", "text", text)

	path, err := s.fetch(ctx, text)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	if s.ducker != nil {
		if err := s.ducker.Duck(ctx); err != nil {
			log.Warn("Failed to duck other streams", "err", err)
		} else {
			defer func() {
				if err := s.ducker.Unduck(context.WithoutCancel(ctx)); err != nil {
					log.Warn("Failed to restore other streams", "err", err)
				}
			}()
		}
	}

	if err := s.player.PlayFile(ctx, path); err != nil {
		return fmt.Errorf("play speech: %w", err)
	}
	return nil
}

func (s *Synthesizer) fetch(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.backend.Synthesize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("synthesize speech: %w", err)
	}
	defer body.Close()

	f, err := os.CreateTemp(s.tempDir, "voxloop-*."+s.backend.Format())
	if err != nil {
		return "", fmt.Errorf("create speech file: %w", err)
	}

	_, err = io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write speech file: %w", err)
	}

	return f.Name(), nil
}
