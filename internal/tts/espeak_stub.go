//go:build !espeak

package tts

import (
	"context"
	"errors"
)

var ErrEspeakUnavailable = errors.New("espeak backend not compiled in (build with -tags espeak)")

type Espeak struct{}

func NewEspeak(string) (*Espeak, error) {
	return nil, ErrEspeakUnavailable
}

func (e *Espeak) Speak(context.Context, string) error {
	return ErrEspeakUnavailable
}
