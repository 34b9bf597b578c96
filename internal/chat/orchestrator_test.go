package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KaramelBytes/sheetwise-cli/internal/profile"
	"github.com/KaramelBytes/sheetwise-cli/internal/table"
)

type recordingCompleter struct {
	prompts []string
	reply   func(n int) (string, error)
}

func (r *recordingCompleter) Complete(_ context.Context, prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	return r.reply(len(r.prompts))
}

func financeDataset(t *testing.T) *table.Dataset {
	t.Helper()
	ds, err := table.NewDataset("Employees", []string{"Department", "Name"}, []table.Row{
		{table.Text("Finance"), table.Text("John Smith")},
	})
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return ds
}

func TestAnswerEndToEndFinance(t *testing.T) {
	ds := financeDataset(t)
	c := &recordingCompleter{reply: func(int) (string, error) { return "1 (John Smith)", nil }}
	o := New(c)

	answer, hist, err := o.Answer(context.Background(), "How many employees in Finance?", ds, nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "1 (John Smith)" {
		t.Fatalf("answer should be returned verbatim, got %q", answer)
	}
	if len(hist) != 1 || hist[0].Answer != "1 (John Smith)" || hist[0].Question != "How many employees in Finance?" {
		t.Fatalf("unexpected history: %+v", hist)
	}
	if len(c.prompts) != 1 {
		t.Fatalf("expected exactly one completion call, got %d", len(c.prompts))
	}
	prompt := c.prompts[0]
	for _, want := range []string{"Finance", "John Smith", "[DATA PROFILE]", "[QUESTION]\nHow many employees in Finance?", "show the calculation"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSequentialAnswersAppendInOrder(t *testing.T) {
	ds := financeDataset(t)
	c := &recordingCompleter{reply: func(n int) (string, error) { return fmt.Sprintf("answer %d", n), nil }}
	o := New(c)

	_, h1, err := o.Answer(context.Background(), "first?", ds, nil)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	_, h2, err := o.Answer(context.Background(), "second?", ds, h1)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(h2) != 2 || h2[0].Question != "first?" || h2[1].Question != "second?" || h2[1].Answer != "answer 2" {
		t.Fatalf("unexpected history: %+v", h2)
	}
	if len(h1) != 1 {
		t.Fatalf("earlier history value must not change, len=%d", len(h1))
	}
	if !strings.Contains(c.prompts[1], "User: first?\nAssistant: answer 1") {
		t.Fatalf("second prompt should replay the first turn:\n%s", c.prompts[1])
	}
}

func TestFailureLeavesHistoryUnchanged(t *testing.T) {
	ds := financeDataset(t)
	before := History{{Question: "q0", Answer: "a0"}}
	snapshot := before.Clone()
	netErr := errors.New("dial tcp: connection refused")
	o := New(CompleterFunc(func(context.Context, string) (string, error) { return "", netErr }))

	answer, after, err := o.Answer(context.Background(), "anything?", ds, before)
	var age *AnswerGenerationError
	if !errors.As(err, &age) {
		t.Fatalf("expected AnswerGenerationError, got %v", err)
	}
	if !errors.Is(err, netErr) {
		t.Fatal("cause should be unwrappable")
	}
	if answer != "" {
		t.Fatalf("answer = %q", answer)
	}
	if len(after) != len(snapshot) || after[0] != snapshot[0] || before[0] != snapshot[0] {
		t.Fatalf("history changed: before=%+v after=%+v", before, after)
	}
}

func TestEmptyCompletionIsAnError(t *testing.T) {
	o := New(CompleterFunc(func(context.Context, string) (string, error) { return "  \n", nil }))
	_, h, err := o.Answer(context.Background(), "q?", financeDataset(t), nil)
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
	if len(h) != 0 {
		t.Fatal("history must stay empty")
	}
}

func TestTimeoutSurfacesAsAnswerGenerationError(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	o := New(CompleterFunc(func(context.Context, string) (string, error) {
		<-block // ignores its context on purpose
		return "late", nil
	}), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, _, err := o.Answer(context.Background(), "q?", financeDataset(t), nil)
	var age *AnswerGenerationError
	if !errors.As(err, &age) || !age.Timeout() {
		t.Fatalf("expected timeout AnswerGenerationError, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("wait was not bounded")
	}
}

func TestHistoryWindowDropsOldestTurns(t *testing.T) {
	var h History
	for i := 1; i <= 7; i++ {
		h = h.Append(Turn{Question: fmt.Sprintf("q%d", i), Answer: fmt.Sprintf("a%d", i)})
	}
	c := &recordingCompleter{reply: func(int) (string, error) { return "ok", nil }}
	o := New(c)
	if _, _, err := o.Answer(context.Background(), "q8", financeDataset(t), h); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	p := c.prompts[0]
	if strings.Contains(p, "User: q1\n") || strings.Contains(p, "User: q2\n") {
		t.Fatalf("turns older than the window should be dropped:\n%s", p)
	}
	for i := 3; i <= 7; i++ {
		if !strings.Contains(p, fmt.Sprintf("User: q%d\n", i)) {
			t.Fatalf("turn q%d missing from prompt", i)
		}
	}
}

func TestInputValidation(t *testing.T) {
	called := false
	o := New(CompleterFunc(func(context.Context, string) (string, error) { called = true; return "x", nil }))

	if _, _, err := o.Answer(context.Background(), "   ", financeDataset(t), nil); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if _, _, err := o.Answer(context.Background(), "q", nil, nil); !errors.Is(err, ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset, got %v", err)
	}
	empty, _ := table.NewDataset("empty", []string{"a"}, nil)
	if _, _, err := o.Answer(context.Background(), "q", empty, nil); !profile.IsEmptyDataset(err) {
		t.Fatalf("expected EmptyDatasetError, got %v", err)
	}
	if called {
		t.Fatal("no remote call should be made for invalid input")
	}
}

type streamStub struct{ deltas []string }

func (s *streamStub) Complete(context.Context, string) (string, error) {
	return strings.Join(s.deltas, ""), nil
}

func (s *streamStub) CompleteStream(_ context.Context, _ string, onDelta func(string)) (string, error) {
	for _, d := range s.deltas {
		onDelta(d)
	}
	return strings.Join(s.deltas, ""), nil
}

func TestStreamingForwardsDeltas(t *testing.T) {
	var got strings.Builder
	o := New(&streamStub{deltas: []string{"Answer: ", "42"}}, WithStream(func(d string) { got.WriteString(d) }))
	answer, _, err := o.Answer(context.Background(), "q?", financeDataset(t), nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "Answer: 42" || got.String() != "Answer: 42" {
		t.Fatalf("answer=%q streamed=%q", answer, got.String())
	}
}

type lateStream struct {
	release chan struct{}
	sent    chan struct{}
}

func (s *lateStream) Complete(context.Context, string) (string, error) { return "", nil }

func (s *lateStream) CompleteStream(_ context.Context, _ string, onDelta func(string)) (string, error) {
	onDelta("early ")
	<-s.release
	onDelta("late")
	close(s.sent)
	return "early late", nil
}

func TestNoDeltasAfterTimeout(t *testing.T) {
	var mu sync.Mutex
	var got strings.Builder
	s := &lateStream{release: make(chan struct{}), sent: make(chan struct{})}
	o := New(s, WithTimeout(20*time.Millisecond), WithStream(func(d string) {
		mu.Lock()
		defer mu.Unlock()
		got.WriteString(d)
	}))

	_, _, err := o.Answer(context.Background(), "q?", financeDataset(t), nil)
	var age *AnswerGenerationError
	if !errors.As(err, &age) || !age.Timeout() {
		t.Fatalf("expected timeout, got %v", err)
	}
	close(s.release)
	<-s.sent

	mu.Lock()
	defer mu.Unlock()
	if got.String() != "early " {
		t.Fatalf("streamed after the deadline: %q", got.String())
	}
}

func TestPrepareThenSend(t *testing.T) {
	rc := &recordingCompleter{reply: func(int) (string, error) { return "1 (John Smith)", nil }}
	o := New(rc)
	req, err := o.Prepare("  Who is in Finance? ", financeDataset(t), nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !strings.Contains(req.Prompt, req.Profile) || req.Question != "Who is in Finance?" {
		t.Fatalf("unexpected request: %+v", req)
	}
	answer, h, err := o.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if answer != "1 (John Smith)" || len(h) != 1 {
		t.Fatalf("answer=%q turns=%d", answer, len(h))
	}
	if len(rc.prompts) != 1 || rc.prompts[0] != req.Prompt {
		t.Fatal("Send must transmit the prepared prompt unchanged")
	}
	if _, err := o.Prepare("", financeDataset(t), nil); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}
