package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiRuntime serves the gemini provider through the Google AI SDK.
type GeminiRuntime struct {
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiRuntime(cfg RuntimeConfig) (*GeminiRuntime, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is missing", ProviderGemini)
	}
	return &GeminiRuntime{apiKey: cfg.APIKey}, nil
}

func (g *GeminiRuntime) getClient() (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// Close releases the SDK client if one was created.
func (g *GeminiRuntime) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}

// prepare configures a model for req and splits the conversation into
// prior turns and the final prompt parts.
func (g *GeminiRuntime) prepare(req GenerateRequest) (*genai.GenerativeModel, []*genai.Content, []genai.Part, error) {
	if req.Model == "" {
		return nil, nil, nil, errors.New("model cannot be empty")
	}
	client, err := g.getClient()
	if err != nil {
		return nil, nil, nil, err
	}
	m := client.GenerativeModel(req.Model)
	if req.Temperature > 0 {
		m.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	var system []string
	var turns []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(turns) == 0 {
		return nil, nil, nil, errors.New("messages cannot be empty")
	}
	last := turns[len(turns)-1]
	return m, turns[:len(turns)-1], last.Parts, nil
}

func (g *GeminiRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	m, prior, parts, err := g.prepare(req)
	if err != nil {
		return nil, err
	}
	var resp *genai.GenerateContentResponse
	if len(prior) > 0 {
		cs := m.StartChat()
		cs.History = prior
		resp, err = cs.SendMessage(ctx, parts...)
	} else {
		resp, err = m.GenerateContent(ctx, parts...)
	}
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	out := &GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: text}}}}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func (g *GeminiRuntime) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	m, prior, parts, err := g.prepare(req)
	if err != nil {
		return err
	}
	var it *genai.GenerateContentResponseIterator
	if len(prior) > 0 {
		cs := m.StartChat()
		cs.History = prior
		it = cs.SendMessageStream(ctx, parts...)
	} else {
		it = m.GenerateContentStream(ctx, parts...)
	}
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		if text := responseText(resp); text != "" {
			onDelta(text)
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
