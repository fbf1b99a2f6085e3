package llm

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// Synthesizer produces advisory narratives through the completion API
// directly, outside the tool-calling loop.
type Synthesizer struct {
	client *openaisdk.Client
	model  string
}

func NewSynthesizer(client *openaisdk.Client, model string) (*Synthesizer, error) {
	if client == nil {
		return nil, fmt.Errorf("llm: synthesizer client is nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("llm: synthesizer model is empty")
	}
	return &Synthesizer{client: client, model: model}, nil
}

func (s *Synthesizer) Synthesize(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: synthesize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: synthesize: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
