package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"voxloop/pkg/audioconv"
)

// Remote sends each utterance to the OpenAI transcription endpoint as a
// 16-bit WAV upload.
type Remote struct {
	client   *openai.Client
	model    string
	language string
	tempDir  string
}

func NewRemote(client *openai.Client, model, language, tempDir string) *Remote {
	if model == "" {
		model = openai.Whisper1
	}
	return &Remote{
		client:   client,
		model:    model,
		language: language,
		tempDir:  tempDir,
	}
}

func (r *Remote) Transcribe(ctx context.Context, pcm16k []float32) (string, error) {
	if len(pcm16k) == 0 {
		return "", ErrNoSpeech
	}

	f, err := os.CreateTemp(r.tempDir, "voxloop-utterance-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := audioconv.WriteWAV(path, pcm16k, audioconv.SampleRate); err != nil {
		return "", err
	}

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		FilePath: path,
		Language: r.language,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

func (r *Remote) Close() error { return nil }
