package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/KaramelBytes/sheetwise-cli/internal/chat"
	"github.com/KaramelBytes/sheetwise-cli/internal/utils"
)

// Transcript is the on-disk form of a conversation.
type Transcript struct {
	SessionID string       `json:"session_id"`
	Source    string       `json:"source,omitempty"`
	Sheet     string       `json:"sheet,omitempty"`
	History   chat.History `json:"history"`
	SavedAt   time.Time    `json:"saved_at"`
}

// Transcript captures the session's current conversation.
func (s *Session) Transcript() Transcript {
	snap := s.Snapshot()
	return Transcript{
		SessionID: snap.ID,
		Source:    snap.Source,
		Sheet:     snap.Active,
		History:   snap.History,
		SavedAt:   time.Now().UTC(),
	}
}

// SaveTranscript writes the conversation to path using atomic write.
func (s *Session) SaveTranscript(path string) error {
	b, err := utils.PrettyJSON(s.Transcript())
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// LoadTranscript reads a transcript written by SaveTranscript.
func LoadTranscript(path string) (*Transcript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("transcript not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var t Transcript
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return &t, nil
}
