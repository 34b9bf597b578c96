package ai

import (
	"fmt"
	"sort"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) (Runtime, error)

// RuntimeConfig carries the knobs shared by all runtimes. Fields a runtime
// does not use are ignored.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	// RetryMax is the total number of attempts; 1 disables retries.
	RetryMax  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	APIKey    string
	// BaseURL overrides the provider endpoint (tests, gateways).
	BaseURL string
	// Host is the Ollama daemon address.
	Host string
}

func (c RuntimeConfig) withDefaults() RuntimeConfig {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 60 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 4 * time.Second
	}
	return c
}

type registration struct {
	factory    RuntimeFactory
	requireKey bool
}

var registry = map[string]registration{}

// RegisterRuntime registers a provider name with its factory. requireKey
// marks providers that cannot run without an API key.
func RegisterRuntime(name string, requireKey bool, f RuntimeFactory) {
	registry[name] = registration{factory: f, requireKey: requireKey}
}

// GetRuntime creates the named runtime.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, error) {
	r, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("provider not supported: %s (available: %v)", name, Providers())
	}
	return r.factory(cfg.withDefaults())
}

// RequiresKey reports whether the provider needs a credential. Unknown
// providers report true.
func RequiresKey(name string) bool {
	r, ok := registry[name]
	return !ok || r.requireKey
}

// Providers lists registered provider names in sorted order.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	RegisterRuntime(ProviderGroq, true, func(c RuntimeConfig) (Runtime, error) {
		return NewClient(ProviderGroq, c), nil
	})
	RegisterRuntime(ProviderOpenRouter, true, func(c RuntimeConfig) (Runtime, error) {
		return NewClient(ProviderOpenRouter, c), nil
	})
	RegisterRuntime(ProviderOpenAI, true, func(c RuntimeConfig) (Runtime, error) {
		return NewLangChainRuntime(c)
	})
	RegisterRuntime(ProviderGemini, true, func(c RuntimeConfig) (Runtime, error) {
		return NewGeminiRuntime(c)
	})
	RegisterRuntime(ProviderOllama, false, func(c RuntimeConfig) (Runtime, error) {
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay), nil
	})
}
