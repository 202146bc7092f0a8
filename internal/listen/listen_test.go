package listen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxloop/pkg/stt"
)

type fakeSpeaker struct {
	said []string
	err  error
}

func (s *fakeSpeaker) Speak(_ context.Context, text string) error {
	s.said = append(s.said, text)
	return s.err
}

type fakeSource struct {
	pcm []float32
	err error
}

func (s *fakeSource) Capture(context.Context) ([]float32, error) {
	return s.pcm, s.err
}

type fakeTranscriber struct {
	text string
	err  error
	got  []float32
}

func (t *fakeTranscriber) Transcribe(_ context.Context, pcm []float32) (string, error) {
	t.got = pcm
	return t.text, t.err
}

type countingCue struct{ n int }

func (c *countingCue) Cue(context.Context) { c.n++ }

func TestListenSuccess(t *testing.T) {
	sp := &fakeSpeaker{}
	tr := &fakeTranscriber{text: "search for cats"}
	cue := &countingCue{}
	l := NewListener(sp, &fakeSource{pcm: []float32{0.2, 0.3}}, tr, WithCue(cue))

	h, err := l.Listen(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Heard{Text: "search for cats"}, h)
	assert.Equal(t, []string{Prompt}, sp.said)
	assert.Equal(t, 1, cue.n)
	assert.Equal(t, []float32{0.2, 0.3}, tr.got)
}

func TestListenResamplesToRecognizerRate(t *testing.T) {
	tr := &fakeTranscriber{text: "hi"}
	l := NewListener(&fakeSpeaker{}, &fakeSource{pcm: []float32{0, 1, 2, 3, 4, 5}}, tr, WithSampleRate(32000))

	_, err := l.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2, 4}, tr.got)
}

func TestListenRecoverableFailures(t *testing.T) {
	tests := []struct {
		name   string
		source *fakeSource
		tr     *fakeTranscriber
		want   error
	}{
		{
			name:   "recognizer unavailable",
			source: &fakeSource{pcm: []float32{0.1}},
			tr:     &fakeTranscriber{err: fmt.Errorf("%w: 503", stt.ErrUnavailable)},
			want:   ErrRecognizer,
		},
		{
			name:   "recognizer heard nothing",
			source: &fakeSource{pcm: []float32{0.1}},
			tr:     &fakeTranscriber{err: stt.ErrNoSpeech},
			want:   ErrNoSpeech,
		},
		{
			name:   "empty transcript",
			source: &fakeSource{pcm: []float32{0.1}},
			tr:     &fakeTranscriber{},
			want:   ErrNoSpeech,
		},
		{
			name:   "silent capture",
			source: &fakeSource{err: fmt.Errorf("window closed: %w", stt.ErrNoSpeech)},
			tr:     &fakeTranscriber{text: "unused"},
			want:   ErrNoSpeech,
		},
		{
			name:   "empty capture",
			source: &fakeSource{},
			tr:     &fakeTranscriber{text: "unused"},
			want:   ErrNoSpeech,
		},
		{
			name:   "device error",
			source: &fakeSource{err: errors.New("input overflowed")},
			tr:     &fakeTranscriber{text: "unused"},
			want:   ErrCapture,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := &fakeSpeaker{}
			l := NewListener(sp, tt.source, tt.tr)

			h, err := l.Listen(context.Background())
			require.NoError(t, err)

			assert.Empty(t, h.Text)
			assert.ErrorIs(t, h.Failure, tt.want)
			assert.Equal(t, []string{Prompt, Apology}, sp.said)
		})
	}
}

func TestListenFatalErrors(t *testing.T) {
	t.Run("prompt cannot be spoken", func(t *testing.T) {
		sp := &fakeSpeaker{err: errors.New("no output device")}
		tr := &fakeTranscriber{text: "hi"}
		_, err := NewListener(sp, &fakeSource{pcm: []float32{1}}, tr).Listen(context.Background())
		assert.ErrorContains(t, err, "no output device")
		assert.Nil(t, tr.got)
	})

	t.Run("replay exhausted", func(t *testing.T) {
		sp := &fakeSpeaker{}
		_, err := NewListener(sp, &fakeSource{err: io.EOF}, &fakeTranscriber{}).Listen(context.Background())
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, []string{Prompt}, sp.said)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewListener(&fakeSpeaker{}, &fakeSource{err: context.Canceled}, &fakeTranscriber{}).Listen(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func writeWAV(t *testing.T, path string, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestReplaySource(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")
	writeWAV(t, first, []int{100, 200, 300})
	writeWAV(t, second, []int{400})

	src := NewReplaySource([]string{first, filepath.Join(dir, "missing.wav"), second}, 0)
	ctx := context.Background()

	pcm, err := src.Capture(ctx)
	require.NoError(t, err)
	assert.Len(t, pcm, 3)

	_, err = src.Capture(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)

	pcm, err = src.Capture(ctx)
	require.NoError(t, err)
	assert.Len(t, pcm, 1)

	_, err = src.Capture(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplayThroughListener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.wav")
	writeWAV(t, path, []int{1000, -1000, 1000})

	tr := &fakeTranscriber{text: "open notes"}
	l := NewListener(&fakeSpeaker{}, NewReplaySource([]string{path}, 10), tr)

	h, err := l.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "open notes", h.Text)
	assert.Len(t, tr.got, 3)

	_, err = l.Listen(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
