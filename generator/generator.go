package generator

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrEmptyOutput is returned when a model answers with nothing usable once
// the echoed prompt is removed.
var ErrEmptyOutput = errors.New("model returned empty output")

type TextOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// TextGenerator produces free text for a prompt. Sampling is stochastic:
// two calls with the same prompt usually differ.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, error)
}

// ImageGenerator renders an image for a prompt and returns the path of the
// written file. Every call overwrites the same file.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// StripPrompt removes every occurrence of prompt from output and trims the
// surrounding whitespace. Causal models echo their input.
func StripPrompt(output, prompt string) string {
	if prompt != "" {
		output = strings.ReplaceAll(output, prompt, "")
	}
	return strings.TrimSpace(output)
}
