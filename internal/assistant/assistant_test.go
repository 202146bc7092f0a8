package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxloop/internal/action"
	"voxloop/internal/listen"
	"voxloop/internal/nlu"
	"voxloop/internal/turn"
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

// scriptedSource yields one utterance per call and io.EOF afterwards.
type scriptedSource struct{ n, total int }

func (s *scriptedSource) Capture(context.Context) ([]float32, error) {
	if s.n >= s.total {
		return nil, io.EOF
	}
	s.n++
	return []float32{0.5}, nil
}

type scriptedTranscriber struct {
	results []result
}

type result struct {
	text string
	err  error
}

func (t *scriptedTranscriber) Transcribe(context.Context, []float32) (string, error) {
	r := t.results[0]
	t.results = t.results[1:]
	return r.text, r.err
}

type fakeParser struct {
	replies map[string]string
	calls   []string
}

func (p *fakeParser) Parse(_ context.Context, transcript string) string {
	p.calls = append(p.calls, transcript)
	if r, ok := p.replies[transcript]; ok {
		return r
	}
	return nlu.Fallback
}

type fakeOpener struct{ opened []string }

func (o *fakeOpener) Open(_ context.Context, target string) error {
	o.opened = append(o.opened, target)
	return nil
}

type recorder struct {
	recs []turn.Record
	err  error
}

func (r *recorder) Publish(_ context.Context, rec turn.Record) error {
	r.recs = append(r.recs, rec)
	return r.err
}

func (r *recorder) Record(_ context.Context, rec turn.Record) error {
	r.recs = append(r.recs, rec)
	return r.err
}

type harness struct {
	speaker *fakeSpeaker
	parser  *fakeParser
	opener  *fakeOpener
	bus     *recorder
	journal *recorder
	a       *Assistant
}

func newHarness(replies map[string]string, results ...result) *harness {
	h := &harness{
		speaker: &fakeSpeaker{},
		parser:  &fakeParser{replies: replies},
		opener:  &fakeOpener{},
		bus:     &recorder{},
		journal: &recorder{},
	}
	l := listen.NewListener(h.speaker,
		&scriptedSource{total: len(results)},
		&scriptedTranscriber{results: results})
	e := action.NewExecutor(h.speaker, h.opener)
	h.a = New(h.speaker, l, h.parser, e, WithPublisher(h.bus), WithJournal(h.journal))
	return h
}

func TestSearchScenario(t *testing.T) {
	h := newHarness(map[string]string{"search for cats": "search_web: value: cats"},
		result{text: "search for cats"})

	done, err := h.a.Turn(context.Background())
	require.NoError(t, err)
	assert.False(t, done)

	assert.Equal(t, []string{listen.Prompt, "Searching the web for cats"}, h.speaker.said)
	assert.Equal(t, []string{"https://www.google.com/search?q=cats"}, h.opener.opened)

	require.Len(t, h.bus.recs, 1)
	rec := h.bus.recs[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "search for cats", rec.Transcript)
	assert.Equal(t, "search_web: value: cats", rec.Reply)
	assert.Equal(t, "search_web", rec.Intent)
	assert.Empty(t, rec.Failure)
	assert.Equal(t, h.bus.recs, h.journal.recs)
}

func TestExitScenario(t *testing.T) {
	for _, text := range []string{"exit now", "EXIT", "please Exit the program"} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(nil, result{text: text})

			done, err := h.a.Turn(context.Background())
			require.NoError(t, err)
			assert.True(t, done)

			assert.Equal(t, []string{listen.Prompt, Goodbye}, h.speaker.said)
			assert.Empty(t, h.parser.calls)
			require.Len(t, h.journal.recs, 1)
			assert.Equal(t, turn.IntentExit, h.journal.recs[0].Intent)
		})
	}
}

func TestRecognizerFailureScenario(t *testing.T) {
	h := newHarness(map[string]string{"hello": "chat_response: value: Hi!"},
		result{err: fmt.Errorf("%w: timeout", stt.ErrUnavailable)},
		result{text: "hello"},
	)

	done, err := h.a.Turn(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, []string{listen.Prompt, listen.Apology}, h.speaker.said)
	assert.Empty(t, h.parser.calls)
	require.Len(t, h.bus.recs, 1)
	assert.Contains(t, h.bus.recs[0].Failure, "recognizer failed")

	// the loop carries on with the next turn
	done, err = h.a.Turn(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, []string{listen.Prompt, listen.Apology, listen.Prompt, "Hi!"}, h.speaker.said)
}

func TestRunUntilExit(t *testing.T) {
	h := newHarness(map[string]string{"tell me a joke": "chat_response: value: No."},
		result{text: "tell me a joke"},
		result{text: "exit"},
		result{text: "never reached"},
	)

	require.NoError(t, h.a.Run(context.Background()))
	assert.Equal(t, []string{listen.Prompt, "No.", listen.Prompt, Goodbye}, h.speaker.said)
	assert.Equal(t, []string{"tell me a joke"}, h.parser.calls)
}

func TestRunEndsWhenInputExhausted(t *testing.T) {
	h := newHarness(map[string]string{"hi": "chat_response: value: Hello"}, result{text: "hi"})

	require.NoError(t, h.a.Run(context.Background()))
	assert.Equal(t, []string{listen.Prompt, "Hello", listen.Prompt}, h.speaker.said)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(nil, result{text: "hi"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.a.Run(ctx))
}

func TestRunReturnsSpeechFailure(t *testing.T) {
	h := newHarness(nil, result{text: "hi"})
	h.speaker.err = errors.New("audio device lost")

	err := h.a.Run(context.Background())
	assert.ErrorContains(t, err, "audio device lost")
}

func TestSinkFailuresDoNotStopTheLoop(t *testing.T) {
	h := newHarness(map[string]string{"hi": "chat_response: value: Hello"}, result{text: "hi"})
	h.bus.err = errors.New("bus down")
	h.journal.err = errors.New("disk full")

	done, err := h.a.Turn(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Len(t, h.bus.recs, 1)
}

func TestTurnRecordsFallbackIntent(t *testing.T) {
	h := newHarness(map[string]string{"sing": "sure, here goes"}, result{text: "sing"})
	h.a.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	_, err := h.a.Turn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{listen.Prompt, action.Unsupported}, h.speaker.said)
	require.Len(t, h.journal.recs, 1)
	assert.Equal(t, "unknown", h.journal.recs[0].Intent)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), h.journal.recs[0].StartedAt)
}

func TestIsExit(t *testing.T) {
	assert.True(t, IsExit("Exit"))
	assert.True(t, IsExit("exiting now"))
	assert.False(t, IsExit("quit"))
	assert.False(t, IsExit(""))
}

type staticListener struct{ heard listen.Heard }

func (l staticListener) Listen(context.Context) (listen.Heard, error) { return l.heard, nil }

func TestBlankTranscriptSkipsParser(t *testing.T) {
	sp := &fakeSpeaker{}
	p := &fakeParser{}
	j := &recorder{}
	a := New(sp, staticListener{listen.Heard{Text: " \t "}}, p, action.NewExecutor(sp, &fakeOpener{}), WithJournal(j))

	done, err := a.Turn(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, p.calls)
	assert.Empty(t, sp.said)
	assert.Empty(t, j.recs)
}
