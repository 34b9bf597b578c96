package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KaramelBytes/sheetwise-cli/internal/ai"
	"github.com/KaramelBytes/sheetwise-cli/internal/chat"
	cfgpkg "github.com/KaramelBytes/sheetwise-cli/internal/config"
	"github.com/KaramelBytes/sheetwise-cli/internal/profile"
	"github.com/KaramelBytes/sheetwise-cli/internal/table"
	"github.com/KaramelBytes/sheetwise-cli/internal/utils"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// buildRuntime resolves the provider and its credential and creates the
// runtime. A missing credential is a ConfigurationError.
func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	providerName := strings.ToLower(strings.TrimSpace(opts.ProviderFlag))
	if providerName == "" && cfg != nil {
		providerName = cfg.Provider
	}
	providerName = ai.NormalizeProvider(providerName)

	if cfg == nil {
		cfg = &cfgpkg.Global{}
	}
	apiKey, err := cfg.RequireCredential(providerName)
	if err != nil {
		return nil, providerName, err
	}
	rc := cfg.RuntimeConfig(apiKey)
	if providerName == ai.ProviderOllama {
		if host := strings.TrimSpace(opts.OllamaHost); host != "" {
			rc.Host = host
		}
		rc.BaseURL = ""
	}

	rt, err := ai.GetRuntime(providerName, rc)
	if err != nil {
		return nil, providerName, err
	}
	return rt, providerName, nil
}

// selectModel picks the explicit flag, then the configured model when it
// belongs to provider, then the provider default.
func selectModel(cfg *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.Model != "" {
		if mi, ok := ai.LookupModel(cfg.Model); !ok || mi.Provider == provider {
			return cfg.Model
		}
	}
	if m := ai.DefaultModel(provider); m != "" {
		return m
	}
	return ai.DefaultModel(ai.ProviderGroq)
}

func loadOptions(cfg *cfgpkg.Global, maxRows int, delimiter string) (table.Options, error) {
	opt := table.Options{}
	if cfg != nil {
		opt.MaxRows = cfg.MaxRows
	}
	if maxRows > 0 {
		opt.MaxRows = maxRows
	}
	d, err := parseDelimiter(delimiter)
	if err != nil {
		return opt, err
	}
	opt.Delimiter = d
	return opt, nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab", "\\t":
		return '\t', nil
	case ";":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported --delimiter: %s", s)
}

func profileOptions(cfg *cfgpkg.Global) profile.Options {
	opt := profile.DefaultOptions()
	if cfg == nil {
		return opt
	}
	if cfg.CategoryThreshold > 0 {
		opt.CategoryThreshold = cfg.CategoryThreshold
	}
	if cfg.SampleRows > 0 {
		opt.SampleRows = cfg.SampleRows
	}
	return opt
}

// openDataset loads path and selects sheet (the first one when empty).
func openDataset(path, sheet string, opt table.Options) (*table.Workbook, *table.Dataset, error) {
	wb, err := table.LoadFile(path, opt)
	if err != nil {
		return nil, nil, err
	}
	ds, err := wb.Sheet(sheet)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("file", path).Strs("sheets", wb.Names()).Str("active", ds.Name).Int("rows", ds.Len()).Msg("workbook loaded")
	return wb, ds, nil
}

type orchestratorOptions struct {
	Model   string
	Timeout time.Duration
	Stream  io.Writer
}

func buildOrchestrator(cfg *cfgpkg.Global, rt ai.Runtime, opts orchestratorOptions) *chat.Orchestrator {
	rc := &chat.RuntimeCompleter{Runtime: rt, Model: opts.Model}
	window := chat.DefaultHistoryWindow
	if cfg != nil {
		rc.MaxTokens = cfg.MaxTokens
		rc.Temperature = cfg.Temperature
		window = cfg.HistoryWindow
	}
	timeout := opts.Timeout
	if timeout <= 0 && cfg != nil {
		timeout = cfg.RequestTimeout()
	}
	if timeout <= 0 {
		timeout = chat.DefaultTimeout
	}
	copts := []chat.Option{
		chat.WithHistoryWindow(window),
		chat.WithTimeout(timeout),
		chat.WithProfileOptions(profileOptions(cfg)),
		chat.WithLogger(log.Logger),
	}
	if opts.Stream != nil {
		w := opts.Stream
		copts = append(copts, chat.WithStream(func(delta string) { fmt.Fprint(w, delta) }))
	}
	return chat.New(rc, copts...)
}

// warnNearContext logs when the prompt estimate approaches the model's
// context window.
func warnNearContext(model, prompt string) int {
	tokens := utils.CountTokens(prompt)
	if mi, ok := ai.LookupModel(model); ok && utils.NearLimit(tokens, mi.ContextTokens, 0.8) {
		log.Warn().Str("model", model).Int("prompt_tokens_est", tokens).Int("context_tokens", mi.ContextTokens).
			Msg("prompt is close to the model's context window; consider --max-rows or a smaller sheet")
	}
	return tokens
}

type answerOutput struct {
	JSON         bool
	Dataset      string
	Provider     string
	Model        string
	Question     string
	PromptTokens int
	Breakdown    map[string]int
	Writer       io.Writer
}

func writeAnswer(answer string, opts answerOutput) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if !opts.JSON {
		fmt.Fprintln(w, strings.TrimRight(answer, "\n"))
		return nil
	}
	out := map[string]any{
		"dataset":       opts.Dataset,
		"provider":      opts.Provider,
		"model":         opts.Model,
		"question":      opts.Question,
		"prompt_tokens": opts.PromptTokens,
		"answer":        answer,
	}
	if len(opts.Breakdown) > 0 {
		out["token_breakdown"] = opts.Breakdown
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(w, string(b))
	return nil
}
