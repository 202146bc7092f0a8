package tts

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Remote is the OpenAI speech endpoint.
type Remote struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	format openai.SpeechResponseFormat
}

func NewRemote(client *openai.Client, model, voice, format string) *Remote {
	r := &Remote{
		client: client,
		model:  openai.TTSModel1,
		voice:  openai.VoiceNova,
		format: openai.SpeechResponseFormatMp3,
	}
	if model != "" {
		r.model = openai.SpeechModel(model)
	}
	if voice != "" {
		r.voice = openai.SpeechVoice(voice)
	}
	if format != "" {
		r.format = openai.SpeechResponseFormat(format)
	}
	return r
}

func (r *Remote) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	resp, err := r.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          r.model,
		Input:          text,
		Voice:          r.voice,
		ResponseFormat: r.format,
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *Remote) Format() string { return string(r.format) }
