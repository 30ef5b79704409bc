package translator

import (
	"context"
	"strings"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/sashabaranov/go-openai"
)

// OpenAI translates through any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Translate(ctx context.Context, text, _, target string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You translate marine and fisheries research content for the National Aquatic Resources Research and Development Agency.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: Prompt(text, target),
			},
		},
		Temperature: 0.3,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrExternalCall, "openai chat completion").WithContext("model", o.model)
	}
	if len(resp.Choices) == 0 {
		return "", errs.New(errs.ErrExternalCall, "openai returned no choices").WithContext("model", o.model)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
