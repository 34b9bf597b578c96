package chat

import "time"

// Turn is one question/answer exchange.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Dataset  string    `json:"dataset,omitempty"`
	AskedAt  time.Time `json:"asked_at"`
}

// History is a session's ordered list of turns, oldest first. Values are
// treated as immutable: Append returns a new slice and never writes into
// the receiver's backing array.
type History []Turn

// Window returns the most recent n turns. n <= 0 yields none.
func (h History) Window(n int) History {
	if n <= 0 || len(h) == 0 {
		return nil
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// Append returns a copy of h with t added at the end.
func (h History) Append(t Turn) History {
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, t)
}

// Clone returns an independent copy.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}
