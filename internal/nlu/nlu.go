package nlu

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
)

// Fallback is returned whenever the model cannot be asked or answers with
// nothing usable.
const Fallback = "chat_response: value: Sorry, I couldn't understand that due to an error."

var (
	ErrCompletion = errors.New("chat completion failed")
	ErrNoChoices  = errors.New("no choices in response")
	ErrEmptyReply = errors.New("empty message content")
)

const systemPrompt = `You are a helpful assistant that translates user commands into structured actions.

Return only one of the following formats:

1. To open a file or app:
   open_file: value: C:\Windows\System32\notepad.exe

2. To search the web:
   search_web: value: search query here

3. To send email:
   send_email: value: email@example.com, message here

If the command does not match any of the above, respond with:
chat_response: value: actual message to say
`

type Parser struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

func NewParser(client openai.Client, model string, timeout time.Duration) *Parser {
	p := &Parser{
		client:  client,
		model:   openai.ChatModelGPT3_5Turbo,
		timeout: timeout,
	}
	if model != "" {
		p.model = openai.ChatModel(model)
	}
	if p.timeout <= 0 {
		p.timeout = 30 * time.Second
	}
	return p
}

// Parse classifies transcript into one reply line. It never fails: any
// remote problem is logged and turned into Fallback.
func (p *Parser) Parse(ctx context.Context, transcript string) string {
	reply, err := p.Complete(ctx, transcript)
	if err != nil {
		log.Error("Failed to classify intent", "err", err)
		return Fallback
	}
	return reply
}

// Complete returns the model's raw reply, trimmed.
func (p *Parser) Complete(ctx context.Context, transcript string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(transcript),
		},
		Model: p.model,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}

	log.Debug("Classified", "transcript", transcript, "reply", content)
	return content, nil
}
