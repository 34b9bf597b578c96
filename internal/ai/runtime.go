package ai

import "context"

// Runtime is a chat completion backend.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// StreamRuntime is implemented by runtimes that can emit partial output.
// onDelta receives each chunk in order.
type StreamRuntime interface {
	GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error
}

// Provider identifiers accepted by GetRuntime.
const (
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
)

// NormalizeProvider maps user spellings and aliases onto provider ids.
func NormalizeProvider(name string) string {
	switch name {
	case "", "groq", "Groq", "GROQ":
		return ProviderGroq
	case "openrouter", "OpenRouter", "OPENROUTER":
		return ProviderOpenRouter
	case "openai", "OpenAI", "OPENAI":
		return ProviderOpenAI
	case "gemini", "Gemini", "GEMINI", "google", "Google":
		return ProviderGemini
	case "ollama", "Ollama", "OLLAMA", "local", "LOCAL":
		return ProviderOllama
	}
	return name
}
