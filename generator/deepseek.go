package generator

import (
	"context"
	"time"

	"github.com/cohesion-org/deepseek-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req *deepseek.ChatCompletionRequest) (*deepseek.ChatCompletionResponse, error)
}

// DeepSeek generates text with the DeepSeek chat completion API. The prompt
// is sent as a single user message.
type DeepSeek struct {
	client chatCompleter
	model  string
}

func NewDeepSeek(apiKey, baseURL, model string, timeout time.Duration) *DeepSeek {
	client := deepseek.NewClient(apiKey)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	if timeout > 0 {
		client.Timeout = timeout
	}
	if model == "" {
		model = deepseek.DeepSeekChat
	}
	return &DeepSeek{client: client, model: model}
}

func (d *DeepSeek) GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, error) {
	req := &deepseek.ChatCompletionRequest{
		Model: d.model,
		Messages: []deepseek.ChatCompletionMessage{{
			Role:    deepseek.ChatMessageRoleUser,
			Content: prompt,
		}},
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
	}
	resp, err := d.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "failed to create chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyOutput
	}
	text := StripPrompt(resp.Choices[0].Message.Content, prompt)
	if text == "" {
		return "", ErrEmptyOutput
	}
	logrus.WithFields(logrus.Fields{"model": d.model, "chars": len(text)}).Debug("generator: text generated")
	return text, nil
}
