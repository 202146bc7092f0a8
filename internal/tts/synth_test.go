package tts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	err   error
	texts []string
}

func (b *fakeBackend) Synthesize(_ context.Context, text string) (io.ReadCloser, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.texts = append(b.texts, text)
	return io.NopCloser(strings.NewReader("ID3 fake mp3 for " + text)), nil
}

func (b *fakeBackend) Format() string { return "mp3" }

type fakePlayer struct {
	err      error
	paths    []string
	contents []string
}

func (p *fakePlayer) PlayFile(_ context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p.paths = append(p.paths, path)
	p.contents = append(p.contents, string(data))
	return p.err
}

type fakeDucker struct {
	calls []string
	err   error
}

func (d *fakeDucker) Duck(context.Context) error {
	d.calls = append(d.calls, "duck")
	return d.err
}

func (d *fakeDucker) Unduck(context.Context) error {
	d.calls = append(d.calls, "unduck")
	return nil
}

func TestSpeakPlaysAndRemovesFile(t *testing.T) {
	dir := t.TempDir()
	backend := &fakeBackend{}
	player := &fakePlayer{}
	s := NewSynthesizer(backend, player, WithTempDir(dir))

	require.NoError(t, s.Speak(context.Background(), "How can I help you?"))

	assert.Equal(t, []string{"How can I help you?"}, backend.texts)
	require.Len(t, player.paths, 1)
	assert.True(t, strings.HasSuffix(player.paths[0], ".mp3"))
	assert.Equal(t, "ID3 fake mp3 for How can I help you?", player.contents[0])
	assert.NoFileExists(t, player.paths[0])
}

func TestSpeakRemovesFileOnPlaybackError(t *testing.T) {
	dir := t.TempDir()
	player := &fakePlayer{err: errors.New("device busy")}
	s := NewSynthesizer(&fakeBackend{}, player, WithTempDir(dir))

	err := s.Speak(context.Background(), "Goodbye!")
	assert.ErrorContains(t, err, "device busy")

	require.Len(t, player.paths, 1)
	assert.NoFileExists(t, player.paths[0])
}

func TestSpeakBackendError(t *testing.T) {
	dir := t.TempDir()
	player := &fakePlayer{}
	s := NewSynthesizer(&fakeBackend{err: errors.New("quota")}, player, WithTempDir(dir))

	err := s.Speak(context.Background(), "hello")
	assert.ErrorContains(t, err, "synthesize speech")
	assert.Empty(t, player.paths)

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSpeakEmptyTextIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	player := &fakePlayer{}
	s := NewSynthesizer(backend, player)

	require.NoError(t, s.Speak(context.Background(), "  "))
	assert.Empty(t, backend.texts)
	assert.Empty(t, player.paths)
}

func TestSpeakDucksAroundPlayback(t *testing.T) {
	ducker := &fakeDucker{}
	s := NewSynthesizer(&fakeBackend{}, &fakePlayer{}, WithTempDir(t.TempDir()), WithDucker(ducker))

	require.NoError(t, s.Speak(context.Background(), "hello"))
	assert.Equal(t, []string{"duck", "unduck"}, ducker.calls)

	// a failed duck does not block speech and is not undone
	ducker = &fakeDucker{err: errors.New("no pactl")}
	player := &fakePlayer{}
	s = NewSynthesizer(&fakeBackend{}, player, WithTempDir(t.TempDir()), WithDucker(ducker))

	require.NoError(t, s.Speak(context.Background(), "hello"))
	assert.Equal(t, []string{"duck"}, ducker.calls)
	assert.Len(t, player.paths, 1)
}

func TestRemoteSynthesize(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	r := NewRemote(openai.NewClientWithConfig(cfg), "", "", "")

	rc, err := r.Synthesize(context.Background(), "Goodbye!")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(data))
	assert.Equal(t, "mp3", r.Format())

	assert.Contains(t, body, `"model":"tts-1"`)
	assert.Contains(t, body, `"voice":"nova"`)
	assert.Contains(t, body, `"input":"Goodbye!"`)
}
