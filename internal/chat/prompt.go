package chat

import (
	"fmt"
	"strings"
)

// DefaultInstructions is the fixed preamble sent ahead of every question.
const DefaultInstructions = `You are a data analyst assistant. Answer the user's question strictly from the dataset described below.
- Use only the profile, the sample rows and the conversation so far; do not invent rows or columns.
- When the answer needs arithmetic (counts, sums, averages, comparisons), show the calculation.
- If the profile does not contain enough information to answer exactly, say what is missing.
- Keep the answer concise and start it with "Answer:".`

// PromptPayload is the text sent to the completion service for one question.
// It is rebuilt for every request and never stored.
type PromptPayload struct {
	System   string
	Profile  string
	History  History
	Question string
}

// Text renders the payload as a single prompt.
func (p PromptPayload) Text() string {
	var b strings.Builder
	b.WriteString("[INSTRUCTIONS]\n")
	b.WriteString(strings.TrimSpace(p.System))
	b.WriteString("\n\n[DATA PROFILE]\n")
	b.WriteString(strings.TrimSpace(p.Profile))
	b.WriteString("\n\n")
	if len(p.History) > 0 {
		b.WriteString("[CONVERSATION SO FAR]\n")
		for _, t := range p.History {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", oneLine(t.Question), strings.TrimSpace(t.Answer))
		}
		b.WriteString("\n")
	}
	b.WriteString("[QUESTION]\n")
	b.WriteString(strings.TrimSpace(p.Question))
	b.WriteString("\n")
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
