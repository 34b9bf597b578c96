// Package session keeps the per-user state of a conversation: the loaded
// workbook, the active sheet and the question/answer history.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/sheetwise-cli/internal/chat"
	"github.com/KaramelBytes/sheetwise-cli/internal/profile"
	"github.com/KaramelBytes/sheetwise-cli/internal/table"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrNoDataset is returned when a question arrives before any upload.
	ErrNoDataset = chat.ErrNoDataset
)

// SheetInfo summarizes one sheet of the loaded workbook.
type SheetInfo struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	ID        string       `json:"id"`
	Source    string       `json:"source,omitempty"`
	Active    string       `json:"active,omitempty"`
	Sheets    []SheetInfo  `json:"sheets"`
	History   chat.History `json:"history"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type profileKey struct {
	sheet string
	opt   profile.Options
}

// Session is safe for concurrent use. Questions are serialized: a second
// Ask waits until the first completes.
type Session struct {
	ID        string
	CreatedAt time.Time

	ask sync.Mutex

	mu        sync.RWMutex
	workbook  *table.Workbook
	active    *table.Dataset
	history   chat.History
	profiles  map[profileKey]*profile.Profile
	gen       uint64
	updatedAt time.Time
}

func New() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		updatedAt: now,
		profiles:  map[profileKey]*profile.Profile{},
	}
}

// Load replaces the workbook, selects its first sheet and discards the
// conversation.
func (s *Session) Load(wb *table.Workbook) error {
	if wb == nil || len(wb.Sheets) == 0 {
		return fmt.Errorf("workbook has no sheets")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workbook = wb
	s.active = wb.Default()
	s.history = nil
	s.profiles = map[profileKey]*profile.Profile{}
	s.gen++
	s.updatedAt = time.Now()
	return nil
}

// Select makes the named sheet (or 1-based index) active. History is kept:
// follow-up questions may compare sheets.
func (s *Session) Select(sheet string) (*table.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workbook == nil {
		return nil, ErrNoDataset
	}
	ds, err := s.workbook.Sheet(sheet)
	if err != nil {
		return nil, err
	}
	s.active = ds
	s.updatedAt = time.Now()
	return ds, nil
}

// Dataset returns the active sheet.
func (s *Session) Dataset() (*table.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil, ErrNoDataset
	}
	return s.active, nil
}

func (s *Session) Sheets() []SheetInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sheetsLocked()
}

func (s *Session) sheetsLocked() []SheetInfo {
	if s.workbook == nil {
		return []SheetInfo{}
	}
	out := make([]SheetInfo, 0, len(s.workbook.Sheets))
	for _, ds := range s.workbook.Sheets {
		out = append(out, SheetInfo{Name: ds.Name, Rows: ds.Len(), Columns: ds.Width()})
	}
	return out
}

// Profile returns the active sheet's profile, building it once per sheet
// and option set.
func (s *Session) Profile(opt profile.Options) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, ErrNoDataset
	}
	key := profileKey{sheet: s.active.Name, opt: opt}
	if p, ok := s.profiles[key]; ok {
		return p, nil
	}
	p, err := profile.Build(s.active, opt)
	if err != nil {
		return nil, err
	}
	s.profiles[key] = p
	return p, nil
}

func (s *Session) History() chat.History {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Clone()
}

// SetHistory replaces the conversation, e.g. when resuming a transcript.
func (s *Session) SetHistory(h chat.History) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = h.Clone()
	s.gen++
	s.updatedAt = time.Now()
}

// Ask answers question against the active sheet. History changes only on
// success, and only if the conversation was not reset (Load, Clear,
// SetHistory) while the question was in flight.
func (s *Session) Ask(ctx context.Context, orch *chat.Orchestrator, question string) (string, error) {
	s.ask.Lock()
	defer s.ask.Unlock()

	s.mu.RLock()
	ds, history, gen := s.active, s.history, s.gen
	s.mu.RUnlock()
	if ds == nil {
		return "", ErrNoDataset
	}

	answer, next, err := orch.Answer(ctx, question, ds, history)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.history = next
		s.updatedAt = time.Now()
	}
	return answer, nil
}

// Clear discards the conversation but keeps the workbook.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.gen++
	s.updatedAt = time.Now()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ID:        s.ID,
		Sheets:    s.sheetsLocked(),
		History:   s.history.Clone(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
	if snap.History == nil {
		snap.History = chat.History{}
	}
	if s.workbook != nil {
		snap.Source = s.workbook.Source
	}
	if s.active != nil {
		snap.Active = s.active.Name
	}
	return snap
}
