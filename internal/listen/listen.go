// Package listen prompts the user, captures one spoken command and turns it
// into text.
package listen

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"time"

	"voxloop/pkg/audioconv"
	"voxloop/pkg/stt"
)

const (
	Prompt  = "How can I help you?"
	Apology = "Sorry, I didn't get that."
)

var (
	ErrNoSpeech   = errors.New("no speech")
	ErrRecognizer = errors.New("recognizer failed")
	ErrCapture    = errors.New("capture failed")
)

// Heard is the outcome of one Listen call. Failure is nil when Text holds a
// transcript and otherwise wraps ErrNoSpeech, ErrRecognizer or ErrCapture.
type Heard struct {
	Text    string
	Failure error
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Source yields one utterance per call as mono float32 PCM.
type Source interface {
	Capture(ctx context.Context) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm16k []float32) (string, error)
}

// Cue signals that the microphone is open.
type Cue interface {
	Cue(ctx context.Context)
}

type Listener struct {
	speaker     Speaker
	source      Source
	transcriber Transcriber
	cue         Cue
	sampleRate  int
	timeout     time.Duration
}

type Option func(*Listener)

func WithCue(c Cue) Option { return func(l *Listener) { l.cue = c } }

// WithSampleRate declares the rate the source captures at. Audio is resampled
// to 16 kHz before recognition.
func WithSampleRate(rate int) Option { return func(l *Listener) { l.sampleRate = rate } }

func WithTimeout(d time.Duration) Option { return func(l *Listener) { l.timeout = d } }

func NewListener(speaker Speaker, source Source, tr Transcriber, opts ...Option) *Listener {
	l := &Listener{
		speaker:     speaker,
		source:      source,
		transcriber: tr,
		sampleRate:  audioconv.SampleRate,
		timeout:     60 * time.Second,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Listen speaks the prompt and returns what the user said. Recoverable
// failures are reported in Heard.Failure after the apology has been spoken.
// The error is non-nil only when the loop cannot continue.
func (l *Listener) Listen(ctx context.Context) (Heard, error) {
	if err := l.speaker.Speak(ctx, Prompt); err != nil {
		return Heard{}, fmt.Errorf("speak prompt: %w", err)
	}

	if l.cue != nil {
		l.cue.Cue(ctx)
	}

	h, err := l.hear(ctx)
	if err != nil {
		return Heard{}, err
	}

	if h.Failure != nil {
		log.Warn("Did not catch that", "err", h.Failure)
		if err := l.speaker.Speak(ctx, Apology); err != nil {
			return Heard{}, fmt.Errorf("speak apology: %w", err)
		}
		return h, nil
	}

	log.Info("Heard", "text", h.Text)
	return h, nil
}

func failed(kind, cause error) Heard {
	return Heard{Failure: fmt.Errorf("%w: %w", kind, cause)}
}

func (l *Listener) hear(ctx context.Context) (Heard, error) {
	pcm, err := l.source.Capture(ctx)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return Heard{}, err
	case ctx.Err() != nil:
		return Heard{}, ctx.Err()
	case errors.Is(err, stt.ErrNoSpeech):
		return failed(ErrNoSpeech, err), nil
	default:
		return failed(ErrCapture, err), nil
	}

	if len(pcm) == 0 {
		return failed(ErrNoSpeech, stt.ErrNoSpeech), nil
	}
	pcm = audioconv.Resample(pcm, l.sampleRate, audioconv.SampleRate)

	log.Debug("Captured", "samples", len(pcm))

	tctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	text, err := l.transcriber.Transcribe(tctx, pcm)
	switch {
	case err == nil && text != "":
		return Heard{Text: text}, nil
	case err == nil, errors.Is(err, stt.ErrNoSpeech):
		return failed(ErrNoSpeech, stt.ErrNoSpeech), nil
	case ctx.Err() != nil:
		return Heard{}, ctx.Err()
	default:
		return failed(ErrRecognizer, err), nil
	}
}
