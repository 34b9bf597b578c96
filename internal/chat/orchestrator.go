// Package chat turns a question about a dataset into one completion request
// and threads the per-session conversation history through it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/KaramelBytes/sheetwise-cli/internal/profile"
	"github.com/KaramelBytes/sheetwise-cli/internal/table"
	"github.com/KaramelBytes/sheetwise-cli/internal/utils"
)

const (
	DefaultHistoryWindow = 5
	DefaultTimeout       = 60 * time.Second
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoDataset     = errors.New("no dataset loaded")
	// ErrEmptyCompletion is the cause recorded when the model returns only whitespace.
	ErrEmptyCompletion = errors.New("completion service returned an empty answer")
)

// AnswerGenerationError reports a failed, timed out or unusable completion.
type AnswerGenerationError struct {
	Dataset string
	Cause   error
}

func (e *AnswerGenerationError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("answer generation timed out: %v", e.Cause)
	}
	return fmt.Sprintf("answer generation failed: %v", e.Cause)
}

func (e *AnswerGenerationError) Unwrap() error { return e.Cause }

// Timeout reports whether the completion exceeded its deadline.
func (e *AnswerGenerationError) Timeout() bool {
	return errors.Is(e.Cause, context.DeadlineExceeded)
}

// Orchestrator builds prompts and performs exactly one completion per
// question. It holds no conversation state; history is passed in and out.
type Orchestrator struct {
	completer    Completer
	instructions string
	window       int
	timeout      time.Duration
	profileOpts  profile.Options
	onDelta      func(string)
	logger       zerolog.Logger
}

type Option func(*Orchestrator)

// WithHistoryWindow bounds how many recent turns are replayed in the prompt.
func WithHistoryWindow(n int) Option { return func(o *Orchestrator) { o.window = n } }

// WithTimeout bounds the wait on the completion service; 0 disables the bound.
func WithTimeout(d time.Duration) Option { return func(o *Orchestrator) { o.timeout = d } }

func WithProfileOptions(p profile.Options) Option {
	return func(o *Orchestrator) { o.profileOpts = p }
}

func WithInstructions(s string) Option { return func(o *Orchestrator) { o.instructions = s } }

// WithStream forwards partial output to fn when the completer can stream.
func WithStream(fn func(string)) Option { return func(o *Orchestrator) { o.onDelta = fn } }

func WithLogger(l zerolog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

func New(c Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completer:    c,
		instructions: DefaultInstructions,
		window:       DefaultHistoryWindow,
		timeout:      DefaultTimeout,
		profileOpts:  profile.DefaultOptions(),
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Request is a prepared question: the profile and the exact prompt that
// Send will transmit.
type Request struct {
	Question string
	Dataset  *table.Dataset
	History  History
	Profile  string
	Prompt   string
}

// Prepare validates the question and builds the prompt without sending it.
func (o *Orchestrator) Prepare(question string, ds *table.Dataset, history History) (*Request, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return nil, ErrEmptyQuestion
	}
	if ds == nil {
		return nil, ErrNoDataset
	}
	profileText, err := profile.BuildText(ds, o.profileOpts)
	if err != nil {
		return nil, err
	}
	return &Request{
		Question: q,
		Dataset:  ds,
		History:  history,
		Profile:  profileText,
		Prompt: PromptPayload{
			System:   o.instructions,
			Profile:  profileText,
			History:  history.Window(o.window),
			Question: q,
		}.Text(),
	}, nil
}

// Prompt renders the payload that Answer would send, without sending it.
func (o *Orchestrator) Prompt(question string, ds *table.Dataset, history History) (string, error) {
	req, err := o.Prepare(question, ds, history)
	if err != nil {
		return "", err
	}
	return req.Prompt, nil
}

// Answer asks the completion service about ds. On success it returns the
// completion verbatim and a new history with one turn appended. On any
// failure the returned history is the input history, untouched.
func (o *Orchestrator) Answer(ctx context.Context, question string, ds *table.Dataset, history History) (string, History, error) {
	req, err := o.Prepare(question, ds, history)
	if err != nil {
		return "", history, err
	}
	return o.Send(ctx, req)
}

// Send transmits a prepared request. It has the same result contract as
// Answer.
func (o *Orchestrator) Send(ctx context.Context, req *Request) (string, History, error) {
	ds, history := req.Dataset, req.History
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	o.logger.Debug().
		Str("dataset", ds.Name).
		Int("history_turns", len(history.Window(o.window))).
		Int("prompt_tokens_est", utils.CountTokens(req.Prompt)).
		Msg("requesting completion")

	answer, err := o.await(ctx, req.Prompt)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		o.logger.Warn().Err(err).Str("dataset", ds.Name).Dur("elapsed", time.Since(start)).Msg("completion failed")
		return "", history, &AnswerGenerationError{Dataset: ds.Name, Cause: err}
	}
	o.logger.Debug().Dur("elapsed", time.Since(start)).Int("answer_chars", len(answer)).Msg("completion received")

	turn := Turn{
		Question: req.Question,
		Answer:   answer,
		Dataset:  ds.Name,
		AskedAt:  time.Now().UTC(),
	}
	return answer, history.Append(turn), nil
}

// await returns when the completer does or when ctx ends, whichever is
// first, so a completer that ignores its context cannot block past the
// deadline. Stream deltas arriving after await gave up are dropped.
func (o *Orchestrator) await(ctx context.Context, prompt string) (string, error) {
	type result struct {
		text string
		err  error
	}
	var (
		mu      sync.Mutex
		stopped bool
	)
	var onDelta func(string)
	if o.onDelta != nil {
		onDelta = func(delta string) {
			mu.Lock()
			defer mu.Unlock()
			if stopped || ctx.Err() != nil {
				return
			}
			o.onDelta(delta)
		}
	}
	ch := make(chan result, 1)
	go func() {
		text, err := o.complete(ctx, prompt, onDelta)
		ch <- result{text, err}
	}()
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		mu.Lock()
		stopped = true
		mu.Unlock()
		return "", ctx.Err()
	}
}

func (o *Orchestrator) complete(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	if o.completer == nil {
		return "", errors.New("no completion service configured")
	}
	if onDelta != nil {
		if sc, ok := o.completer.(StreamCompleter); ok {
			return sc.CompleteStream(ctx, prompt, onDelta)
		}
	}
	return o.completer.Complete(ctx, prompt)
}
