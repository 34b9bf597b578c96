package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/KaramelBytes/sheetwise-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/sheetwise-cli/internal/config"
)

func TestSelectModelPrecedence(t *testing.T) {
	c := &cfgpkg.Global{Model: "llama-3.3-70b-versatile"}
	if got := selectModel(c, ai.ProviderGroq, "explicit"); got != "explicit" {
		t.Fatalf("explicit flag should win, got %s", got)
	}
	if got := selectModel(c, ai.ProviderGroq, ""); got != "llama-3.3-70b-versatile" {
		t.Fatalf("configured model should be used, got %s", got)
	}
	// A catalogued model of another provider is not sent to this one.
	if got := selectModel(c, ai.ProviderOllama, ""); got != ai.DefaultModel(ai.ProviderOllama) {
		t.Fatalf("expected ollama default, got %s", got)
	}
	if got := selectModel(&cfgpkg.Global{Model: "my-finetune"}, ai.ProviderOllama, ""); got != "my-finetune" {
		t.Fatalf("uncatalogued model should pass through, got %s", got)
	}
	if got := selectModel(nil, ai.ProviderGemini, ""); got != ai.DefaultModel(ai.ProviderGemini) {
		t.Fatalf("expected gemini default, got %s", got)
	}
}

func TestParseDelimiter(t *testing.T) {
	cases := map[string]rune{"": 0, ",": ',', ";": ';', "tab": '\t', "\\t": '\t', "|": '|', "pipe": '|'}
	for in, want := range cases {
		got, err := parseDelimiter(in)
		if err != nil || got != want {
			t.Errorf("parseDelimiter(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseDelimiter("::"); err == nil {
		t.Fatalf("expected error for unsupported delimiter")
	}
}

func TestLoadOptionsFlagOverridesConfig(t *testing.T) {
	opt, err := loadOptions(&cfgpkg.Global{MaxRows: 100}, 0, ";")
	if err != nil {
		t.Fatal(err)
	}
	if opt.MaxRows != 100 || opt.Delimiter != ';' {
		t.Fatalf("unexpected options: %+v", opt)
	}
	opt, _ = loadOptions(&cfgpkg.Global{MaxRows: 100}, 5, "")
	if opt.MaxRows != 5 {
		t.Fatalf("flag should override config, got %d", opt.MaxRows)
	}
}

func TestProfileOptionsFromConfig(t *testing.T) {
	opt := profileOptions(&cfgpkg.Global{CategoryThreshold: 7, SampleRows: 4})
	if opt.CategoryThreshold != 7 || opt.SampleRows != 4 {
		t.Fatalf("unexpected profile options: %+v", opt)
	}
	def := profileOptions(nil)
	if def.CategoryThreshold != 20 || def.SampleRows != 2 {
		t.Fatalf("unexpected defaults: %+v", def)
	}
}

func TestBuildRuntimeOllamaNeedsNoKey(t *testing.T) {
	isolate(t)
	c := &cfgpkg.Global{Provider: ai.ProviderGroq, HTTPTimeoutSec: 5, RetryMaxAttempts: 1}
	rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: "local", OllamaHost: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	if provider != ai.ProviderOllama || rt == nil {
		t.Fatalf("unexpected runtime for %s: %T", provider, rt)
	}
	if _, _, err := buildRuntime(c, runtimeOptions{}); err == nil {
		t.Fatalf("groq without a key should fail")
	}
}

func TestWriteAnswerJSON(t *testing.T) {
	var buf bytes.Buffer
	err := writeAnswer("42\n", answerOutput{JSON: true, Dataset: "staff", Provider: "groq", Model: "m", Question: "q", PromptTokens: 12, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]any
	if err := json.Unmarshal(buf.Bytes(), &v); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if v["answer"] != "42\n" || v["dataset"] != "staff" || v["prompt_tokens"].(float64) != 12 {
		t.Fatalf("unexpected payload: %v", v)
	}
	if _, ok := v["token_breakdown"]; ok {
		t.Fatalf("empty breakdown should be omitted")
	}

	buf.Reset()
	_ = writeAnswer("42\n", answerOutput{Writer: &buf})
	if strings.TrimSpace(buf.String()) != "42" {
		t.Fatalf("plain output = %q", buf.String())
	}
}
