package chat

import (
	"context"
	"strings"

	"github.com/KaramelBytes/sheetwise-cli/internal/ai"
)

// Completer is the one capability the orchestrator needs from a language
// model: prompt text in, completion text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StreamCompleter is implemented by completers that can report partial
// output while the completion is generated. The returned string is the
// full completion.
type StreamCompleter interface {
	Completer
	CompleteStream(ctx context.Context, prompt string, onDelta func(string)) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// RuntimeCompleter sends prompts to an ai.Runtime as a single user message.
type RuntimeCompleter struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
}

func (c *RuntimeCompleter) request(prompt string) ai.GenerateRequest {
	return ai.GenerateRequest{
		Model:       c.Model,
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}

func (c *RuntimeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Runtime.Generate(ctx, c.request(prompt))
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStream streams when the runtime supports it and falls back to a
// single Generate call otherwise.
func (c *RuntimeCompleter) CompleteStream(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	sr, ok := c.Runtime.(ai.StreamRuntime)
	if !ok {
		out, err := c.Complete(ctx, prompt)
		if err == nil && onDelta != nil {
			onDelta(out)
		}
		return out, err
	}
	var b strings.Builder
	err := sr.GenerateStream(ctx, c.request(prompt), func(delta string) {
		b.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
