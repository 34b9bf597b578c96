package render

import (
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/sheetwise-cli/internal/chat"
	"github.com/KaramelBytes/sheetwise-cli/internal/session"
)

func TestMarkdownTablesAndRawHTML(t *testing.T) {
	out, err := Markdown("Answer: **3**\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n<script>alert(1)</script>")
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, "<strong>3</strong>") || !strings.Contains(s, "<table>") {
		t.Fatalf("markdown not rendered: %s", s)
	}
	if strings.Contains(s, "<script>") {
		t.Fatalf("raw html leaked: %s", s)
	}
}

func TestTranscriptEscapesQuestions(t *testing.T) {
	snap := session.Snapshot{
		ID:     "abc",
		Source: "company.xlsx",
		Active: "Finance",
		Sheets: []session.SheetInfo{{Name: "Finance", Rows: 3, Columns: 4}},
		History: chat.History{
			{Question: "<b>who</b> earns most?", Answer: "Answer: John Smith", Dataset: "Finance", AskedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		},
	}
	b, err := Transcript(snap)
	if err != nil {
		t.Fatal(err)
	}
	page := string(b)
	for _, want := range []string{"company.xlsx", "&lt;b&gt;who&lt;/b&gt;", "Answer: John Smith", "2024-05-01 10:00:00", "<td>Finance</td>"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestTranscriptEmpty(t *testing.T) {
	b, err := Transcript(session.Snapshot{ID: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "No questions asked yet.") {
		t.Fatalf("page = %s", b)
	}
}
