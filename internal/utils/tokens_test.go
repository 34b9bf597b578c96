package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/sheetwise-cli/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		min  int
	}{
		{"empty", "", 0},
		{"simple", "hello world", 2},
		{"long", strings.Repeat("a", 4000), 900},
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got < c.min {
			t.Errorf("%s: got %d < min %d", c.name, got, c.min)
		}
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat("abcd ", 1000)
	trunc := utils.TruncateToTokenLimit(text, 300)
	n := utils.CountTokens(trunc)
	if n > 300 {
		t.Fatalf("tokens=%d exceeds limit", n)
	}
	if len(trunc) == 0 {
		t.Fatalf("expected non-empty truncation")
	}
	if utils.TruncateToTokenLimit("short", 10) != "short" {
		t.Fatalf("short text should be untouched")
	}
}

func TestTokenBreakdown(t *testing.T) {
	got := utils.TokenBreakdown(map[string]string{"profile": strings.Repeat("x", 40), "question": ""})
	if got["profile"] != 10 || got["question"] != 0 {
		t.Fatalf("breakdown = %v", got)
	}
}

func TestNearLimit(t *testing.T) {
	if !utils.NearLimit(900, 1000, 0.8) {
		t.Fatal("900/1000 should be near the limit")
	}
	if utils.NearLimit(100, 1000, 0.8) || utils.NearLimit(100, 0, 0.8) {
		t.Fatal("unexpected near-limit report")
	}
}
