//go:build !whisper

package stt

import (
	"context"
	"errors"
)

var ErrWhisperUnavailable = errors.New("whisper backend not compiled in (build with -tags whisper)")

type Options struct {
	Language string
	Threads  int
}

type Whisper struct{}

func NewWhisper(string, Options) (*Whisper, error) {
	return nil, ErrWhisperUnavailable
}

func (t *Whisper) Transcribe(context.Context, []float32) (string, error) {
	return "", ErrWhisperUnavailable
}

func (t *Whisper) Close() error { return nil }
