package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// LangChainRuntime serves the openai provider through langchaingo. The
// underlying client is created on first use because it is bound to a model
// name and requests may choose their own.
type LangChainRuntime struct {
	cfg        RuntimeConfig
	httpClient *http.Client

	mu     sync.Mutex
	models map[string]llms.Model
}

func NewLangChainRuntime(cfg RuntimeConfig) (*LangChainRuntime, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is missing", ProviderOpenAI)
	}
	return &LangChainRuntime{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		models:     map[string]llms.Model{},
	}, nil
}

func (r *LangChainRuntime) model(name string) (llms.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[name]; ok {
		return m, nil
	}
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(r.cfg.APIKey, "Bearer ")),
		openai.WithModel(name),
		openai.WithHTTPClient(r.httpClient),
	}
	if r.cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(r.cfg.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	r.models[name] = m
	return m, nil
}

func toMessageContent(msgs []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		role := schema.ChatMessageTypeHuman
		switch m.Role {
		case "system":
			role = schema.ChatMessageTypeSystem
		case "assistant":
			role = schema.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func callOptions(req GenerateRequest) []llms.CallOption {
	opts := []llms.CallOption{llms.WithModel(req.Model)}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	return opts
}

func (r *LangChainRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	return r.generate(ctx, req, nil)
}

func (r *LangChainRuntime) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	_, err := r.generate(ctx, req, onDelta)
	return err
}

func (r *LangChainRuntime) generate(ctx context.Context, req GenerateRequest, onDelta func(string)) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	m, err := r.model(req.Model)
	if err != nil {
		return nil, err
	}
	opts := callOptions(req)
	if onDelta != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			onDelta(string(chunk))
			return nil
		}))
	}
	resp, err := m.GenerateContent(ctx, toMessageContent(req.Messages), opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &GenerateResponse{
		Choices: []Choice{{Message: Message{Role: "assistant", Content: resp.Choices[0].Content}}},
	}, nil
}
