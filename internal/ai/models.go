package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// ModelInfo describes a model well enough to warn before a prompt overflows
// its context window. Prices are indicative, in USD per 1K tokens.
type ModelInfo struct {
	Name          string  `json:"name"`
	Provider      string  `json:"provider"`
	ContextTokens int     `json:"context_tokens"`
	InputPerK     float64 `json:"input_per_k,omitempty"`
	OutputPerK    float64 `json:"output_per_k,omitempty"`
}

var (
	catalogMu sync.RWMutex
	catalog   = map[string]ModelInfo{
		"llama-3.1-8b-instant":    {Name: "llama-3.1-8b-instant", Provider: ProviderGroq, ContextTokens: 131072, InputPerK: 0.00005, OutputPerK: 0.00008},
		"llama-3.3-70b-versatile": {Name: "llama-3.3-70b-versatile", Provider: ProviderGroq, ContextTokens: 131072, InputPerK: 0.00059, OutputPerK: 0.00079},
		"llama3-8b-8192":          {Name: "llama3-8b-8192", Provider: ProviderGroq, ContextTokens: 8192, InputPerK: 0.00005, OutputPerK: 0.00008},
		"gemma2-9b-it":            {Name: "gemma2-9b-it", Provider: ProviderGroq, ContextTokens: 8192, InputPerK: 0.0002, OutputPerK: 0.0002},

		"openai/gpt-4o-mini":               {Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
		"meta-llama/llama-3.1-8b-instruct": {Name: "meta-llama/llama-3.1-8b-instruct", Provider: ProviderOpenRouter, ContextTokens: 131072},
		"deepseek/deepseek-r1:free":        {Name: "deepseek/deepseek-r1:free", Provider: ProviderOpenRouter, ContextTokens: 128000},

		"gpt-4o-mini":  {Name: "gpt-4o-mini", Provider: ProviderOpenAI, ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
		"gpt-4.1-mini": {Name: "gpt-4.1-mini", Provider: ProviderOpenAI, ContextTokens: 1047576, InputPerK: 0.0004, OutputPerK: 0.0016},

		"gemini-1.5-flash": {Name: "gemini-1.5-flash", Provider: ProviderGemini, ContextTokens: 1000000, InputPerK: 0.000075, OutputPerK: 0.0003},
		"gemini-2.0-flash": {Name: "gemini-2.0-flash", Provider: ProviderGemini, ContextTokens: 1048576, InputPerK: 0.0001, OutputPerK: 0.0004},

		"llama3.1:8b":    {Name: "llama3.1:8b", Provider: ProviderOllama, ContextTokens: 8192},
		"llama3:latest":  {Name: "llama3:latest", Provider: ProviderOllama, ContextTokens: 8192},
		"qwen2.5:7b":     {Name: "qwen2.5:7b", Provider: ProviderOllama, ContextTokens: 32768},
		"mistral:latest": {Name: "mistral:latest", Provider: ProviderOllama, ContextTokens: 8192},
	}
	defaultModels = map[string]string{
		ProviderGroq:       "llama-3.1-8b-instant",
		ProviderOpenRouter: "openai/gpt-4o-mini",
		ProviderOpenAI:     "gpt-4o-mini",
		ProviderGemini:     "gemini-1.5-flash",
		ProviderOllama:     "llama3.1:8b",
	}
)

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := catalog[name]
	return mi, ok
}

// ListModels returns catalog entries for provider (all when empty), sorted
// by provider then name.
func ListModels(provider string) []ModelInfo {
	catalogMu.RLock()
	out := make([]ModelInfo, 0, len(catalog))
	for _, m := range catalog {
		if provider == "" || m.Provider == provider {
			out = append(out, m)
		}
	}
	catalogMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// EstimateCostUSD prices a request; ok is false for unknown models.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	return float64(promptTokens)/1000*mi.InputPerK + float64(completionTokens)/1000*mi.OutputPerK, true
}

// LoadCatalogFromJSON reads a {"model-name": ModelInfo} object.
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// MergeCatalog adds or replaces entries.
func MergeCatalog(m map[string]ModelInfo) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		catalog[k] = v
	}
}
