package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KaramelBytes/sheetwise-cli/internal/chat"
	"github.com/KaramelBytes/sheetwise-cli/internal/profile"
	"github.com/KaramelBytes/sheetwise-cli/internal/table"
)

func workbook(t *testing.T) *table.Workbook {
	t.Helper()
	finance, err := table.NewDataset("Finance", []string{"Name", "Salary"}, []table.Row{
		{table.Text("John Smith"), table.Number(5000)},
		{table.Text("Ana"), table.Number(4200)},
	})
	if err != nil {
		t.Fatal(err)
	}
	sales, err := table.NewDataset("Sales", []string{"Region", "Amount"}, []table.Row{
		{table.Text("North"), table.Number(10)},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &table.Workbook{Source: "company.xlsx", Sheets: []*table.Dataset{finance, sales}}
}

func echo(answer string) *chat.Orchestrator {
	return chat.New(chat.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return answer, nil
	}))
}

func TestAskWithoutDataset(t *testing.T) {
	s := New()
	if _, err := s.Ask(context.Background(), echo("x"), "how many?"); !errors.Is(err, ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset, got %v", err)
	}
	if _, err := s.Dataset(); !errors.Is(err, ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset, got %v", err)
	}
}

func TestLoadSelectsFirstSheetAndResetsHistory(t *testing.T) {
	s := New()
	if err := s.Load(workbook(t)); err != nil {
		t.Fatal(err)
	}
	ds, _ := s.Dataset()
	if ds.Name != "Finance" {
		t.Fatalf("active = %s", ds.Name)
	}
	if _, err := s.Ask(context.Background(), echo("Answer: 2"), "how many employees?"); err != nil {
		t.Fatal(err)
	}
	if len(s.History()) != 1 {
		t.Fatalf("history = %d", len(s.History()))
	}
	if err := s.Load(workbook(t)); err != nil {
		t.Fatal(err)
	}
	if len(s.History()) != 0 {
		t.Fatal("new upload should reset the conversation")
	}
}

func TestSelectKeepsHistory(t *testing.T) {
	s := New()
	_ = s.Load(workbook(t))
	_, _ = s.Ask(context.Background(), echo("ok"), "q1")
	ds, err := s.Select("sales")
	if err != nil || ds.Name != "Sales" {
		t.Fatalf("Select: %v %v", ds, err)
	}
	if _, err := s.Select("Missing"); err == nil || !strings.Contains(err.Error(), "available") {
		t.Fatalf("expected not found error listing sheets, got %v", err)
	}
	if len(s.History()) != 1 {
		t.Fatal("switching sheets should keep history")
	}
	snap := s.Snapshot()
	if snap.Active != "Sales" || len(snap.Sheets) != 2 || snap.Sheets[0].Rows != 2 || snap.Source != "company.xlsx" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestAskFailureLeavesHistory(t *testing.T) {
	s := New()
	_ = s.Load(workbook(t))
	_, _ = s.Ask(context.Background(), echo("first"), "q1")

	failing := chat.New(chat.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("upstream down")
	}))
	_, err := s.Ask(context.Background(), failing, "q2")
	var age *chat.AnswerGenerationError
	if !errors.As(err, &age) {
		t.Fatalf("expected AnswerGenerationError, got %v", err)
	}
	h := s.History()
	if len(h) != 1 || h[0].Question != "q1" {
		t.Fatalf("history changed on failure: %+v", h)
	}
}

func TestAskSerializesQuestions(t *testing.T) {
	s := New()
	_ = s.Load(workbook(t))
	var inFlight, maxInFlight int32
	orch := chat.New(chat.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "ok", nil
	}))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Ask(context.Background(), orch, "q")
		}()
	}
	wg.Wait()
	if maxInFlight != 1 {
		t.Fatalf("max concurrent completions = %d", maxInFlight)
	}
	if len(s.History()) != 4 {
		t.Fatalf("history = %d, want 4", len(s.History()))
	}
}

func TestProfileIsCached(t *testing.T) {
	s := New()
	_ = s.Load(workbook(t))
	p1, err := s.Profile(profile.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	p2, _ := s.Profile(profile.DefaultOptions())
	if p1 != p2 {
		t.Fatal("expected cached profile")
	}
	_, _ = s.Select("Sales")
	p3, _ := s.Profile(profile.DefaultOptions())
	if p3.Dataset != "Sales" {
		t.Fatalf("profile dataset = %s", p3.Dataset)
	}
}

func TestClear(t *testing.T) {
	s := New()
	_ = s.Load(workbook(t))
	_, _ = s.Ask(context.Background(), echo("ok"), "q1")
	s.Clear()
	if len(s.History()) != 0 {
		t.Fatal("Clear should drop history")
	}
	if _, err := s.Dataset(); err != nil {
		t.Fatal("Clear should keep the workbook")
	}
}

func TestClearWhileAskingDropsOldTurns(t *testing.T) {
	s := New()
	_ = s.Load(workbook(t))
	s.SetHistory(chat.History{{Question: "old", Answer: "old", Dataset: "Finance"}})

	started, release := make(chan struct{}), make(chan struct{})
	orch := chat.New(chat.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		close(started)
		<-release
		return "new", nil
	}))
	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), orch, "q")
		done <- err
	}()

	<-started
	s.Clear()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("ask: %v", err)
	}
	for _, turn := range s.History() {
		if turn.Question == "old" {
			t.Fatalf("cleared turn came back: %+v", s.History())
		}
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	s := New()
	_ = s.Load(workbook(t))
	_, _ = s.Ask(context.Background(), echo("Answer: 1 (John Smith)"), "who earns most?")

	path := filepath.Join(t.TempDir(), "chats", "finance.json")
	if err := s.SaveTranscript(path); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	tr, err := LoadTranscript(path)
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if tr.SessionID != s.ID || tr.Sheet != "Finance" || len(tr.History) != 1 || tr.History[0].Answer != "Answer: 1 (John Smith)" {
		t.Fatalf("transcript = %+v", tr)
	}

	resumed := New()
	_ = resumed.Load(workbook(t))
	resumed.SetHistory(tr.History)
	if len(resumed.History()) != 1 {
		t.Fatal("resume lost history")
	}

	if _, err := LoadTranscript(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatal("expected error for missing transcript")
	}
}

func TestStore(t *testing.T) {
	st := NewStore()
	a := st.Create()
	b := st.Create()
	if a.ID == b.ID || st.Len() != 2 {
		t.Fatalf("ids %s %s len %d", a.ID, b.ID, st.Len())
	}
	got, err := st.Get(a.ID)
	if err != nil || got != a {
		t.Fatalf("Get: %v", err)
	}
	if err := st.Delete(a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.Delete(a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ids := st.IDs(); len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("IDs = %v", ids)
	}
	time.Sleep(2 * time.Millisecond)
	if n := st.Prune(time.Millisecond); n != 1 || st.Len() != 0 {
		t.Fatalf("Prune removed %d, len %d", n, st.Len())
	}
}
