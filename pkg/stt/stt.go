// Package stt turns 16 kHz mono PCM into text, either with a local
// whisper.cpp model or with the OpenAI transcription endpoint.
package stt

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNoSpeech means the audio held nothing the recognizer could transcribe.
	ErrNoSpeech = errors.New("no speech recognized")
	// ErrUnavailable means the recognition service could not be reached or
	// rejected the request.
	ErrUnavailable = errors.New("recognition service unavailable")
)

type Transcriber interface {
	Transcribe(ctx context.Context, pcm16k []float32) (string, error)
	Close() error
}

var blankRe = regexp.MustCompile(`\[BLANK_AUDIO\]|\(silence\)`)

// cleanTranscript strips whisper's blank-audio markers.
func cleanTranscript(s string) string {
	return strings.TrimSpace(blankRe.ReplaceAllString(s, ""))
}
