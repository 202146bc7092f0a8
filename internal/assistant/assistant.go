// Package assistant runs the listen, parse and act loop.
package assistant

import (
	"context"
	"errors"
	"io"
	log "log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxloop/internal/listen"
	"voxloop/internal/nlu"
	"voxloop/internal/turn"
)

const Goodbye = "Goodbye!"

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Listener interface {
	Listen(ctx context.Context) (listen.Heard, error)
}

type Parser interface {
	Parse(ctx context.Context, transcript string) string
}

type Executor interface {
	Perform(ctx context.Context, reply string) error
}

// Publisher and Journal receive every finished turn. Their errors are logged
// and otherwise ignored.
type Publisher interface {
	Publish(ctx context.Context, rec turn.Record) error
}

type Journal interface {
	Record(ctx context.Context, rec turn.Record) error
}

type Assistant struct {
	speaker  Speaker
	listener Listener
	parser   Parser
	executor Executor

	publisher Publisher
	journal   Journal

	now func() time.Time
}

type Option func(*Assistant)

func WithPublisher(p Publisher) Option { return func(a *Assistant) { a.publisher = p } }

func WithJournal(j Journal) Option { return func(a *Assistant) { a.journal = j } }

func New(speaker Speaker, listener Listener, parser Parser, executor Executor, opts ...Option) *Assistant {
	a := &Assistant{
		speaker:  speaker,
		listener: listener,
		parser:   parser,
		executor: executor,
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// IsExit reports whether the transcript asks to end the session.
func IsExit(transcript string) bool {
	return strings.Contains(strings.ToLower(transcript), "exit")
}

// Run repeats Turn until the user says exit, the context is cancelled or the
// input runs out. Any other error is fatal and returned.
func (a *Assistant) Run(ctx context.Context) error {
	log.Info("Assistant running")

	for {
		done, err := a.Turn(ctx)
		switch {
		case ctx.Err() != nil:
			log.Info("Assistant stopped", "reason", context.Cause(ctx))
			return nil
		case errors.Is(err, io.EOF):
			log.Info("Input exhausted")
			return nil
		case err != nil:
			return err
		case done:
			log.Info("Assistant finished")
			return nil
		}
	}
}

// Turn runs one iteration and reports whether the session is over.
func (a *Assistant) Turn(ctx context.Context) (bool, error) {
	rec := turn.Record{
		ID:        uuid.NewString(),
		StartedAt: a.now(),
	}

	heard, err := a.listener.Listen(ctx)
	if err != nil {
		return false, err
	}

	if heard.Failure != nil {
		rec.Failure = heard.Failure.Error()
		a.emit(ctx, rec)
		return false, nil
	}

	rec.Transcript = heard.Text

	if IsExit(heard.Text) {
		rec.Intent = turn.IntentExit
		err := a.speaker.Speak(ctx, Goodbye)
		a.emit(ctx, rec)
		return true, err
	}

	if strings.TrimSpace(heard.Text) == "" {
		return false, nil
	}

	rec.Reply = a.parser.Parse(ctx, heard.Text)
	if in, err := nlu.Decode(rec.Reply); err == nil {
		rec.Intent = in.Kind.String()
	} else {
		rec.Intent = nlu.Unknown.String()
	}

	log.Info("Reply", "turn", rec.ID, "reply", rec.Reply)

	err = a.executor.Perform(ctx, rec.Reply)
	a.emit(ctx, rec)
	return false, err
}

func (a *Assistant) emit(ctx context.Context, rec turn.Record) {
	ctx = context.WithoutCancel(ctx)

	if a.journal != nil {
		if err := a.journal.Record(ctx, rec); err != nil {
			log.Warn("Failed to journal turn", "turn", rec.ID, "err", err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, rec); err != nil {
			log.Warn("Failed to publish turn", "turn", rec.ID, "err", err)
		}
	}
}
