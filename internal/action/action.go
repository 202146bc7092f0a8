// Package action carries out the intents produced by the parser.
package action

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"voxloop/internal/nlu"
)

const (
	Opening      = "Opening file or application."
	OpenFailed   = "Sorry, I couldn't open the file."
	EmailPending = "Sending emails is not yet implemented."
	Unsupported  = "Sorry, I can't perform that task."

	DefaultSearchURL = "https://www.google.com/search?q="
)

var ErrNotAllowed = errors.New("path not in allow list")

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Opener interface {
	Open(ctx context.Context, target string) error
}

type Executor struct {
	speaker   Speaker
	opener    Opener
	searchURL string
	allow     []string
}

type Option func(*Executor)

func WithSearchURL(u string) Option { return func(e *Executor) { e.searchURL = u } }

// WithAllow restricts open_file to absolute paths inside one of dirs.
func WithAllow(dirs []string) Option { return func(e *Executor) { e.allow = dirs } }

func NewExecutor(speaker Speaker, opener Opener, opts ...Option) *Executor {
	e := &Executor{
		speaker:   speaker,
		opener:    opener,
		searchURL: DefaultSearchURL,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Perform decodes reply and acts on it. Only speech failures are returned;
// everything else ends in a spoken message.
func (e *Executor) Perform(ctx context.Context, reply string) error {
	in, err := nlu.Decode(reply)
	if err != nil {
		log.Warn("Unusable reply", "reply", reply, "err", err)
		return e.speaker.Speak(ctx, Unsupported)
	}

	log.Info("Performing", "intent", in.Kind, "value", in.Value)

	switch in.Kind {
	case nlu.OpenFile:
		return e.openFile(ctx, in.Value)
	case nlu.SearchWeb:
		return e.searchWeb(ctx, in.Value)
	case nlu.SendEmail:
		return e.speaker.Speak(ctx, EmailPending)
	case nlu.ChatResponse:
		return e.speaker.Speak(ctx, in.Value)
	default:
		return e.speaker.Speak(ctx, Unsupported)
	}
}

func (e *Executor) openFile(ctx context.Context, path string) error {
	if err := e.speaker.Speak(ctx, Opening); err != nil {
		return err
	}

	target, err := e.permit(path)
	if err == nil {
		err = e.opener.Open(ctx, target)
	}
	if err != nil {
		log.Error("Failed to open", "path", path, "err", err)
		return e.speaker.Speak(ctx, OpenFailed)
	}
	return nil
}

// permit returns the path to launch. With an allow list the payload must be
// absolute and, once cleaned, lie at or below one of the allowed directories.
func (e *Executor) permit(path string) (string, error) {
	if len(e.allow) == 0 {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %s is not absolute", ErrNotAllowed, path)
	}

	clean := filepath.Clean(path)
	for _, p := range e.allow {
		dir := filepath.Clean(p)
		if clean == dir || strings.HasPrefix(clean, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator)) {
			return clean, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotAllowed, clean)
}

func (e *Executor) searchWeb(ctx context.Context, query string) error {
	if err := e.speaker.Speak(ctx, "Searching the web for "+query); err != nil {
		return err
	}

	target := e.searchURL + url.QueryEscape(query)
	if err := e.opener.Open(ctx, target); err != nil {
		log.Error("Failed to open browser", "url", target, "err", err)
	}
	return nil
}
