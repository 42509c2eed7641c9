package suite

import (
	"fmt"
	"strings"
)

// Characters are the personas exercised by a run, in run order.
var Characters = []string{
	"pilot",
	"power-operator",
	"astronaut",
	"satellite-operator",
	"emergency-coordinator",
	"scientist",
}

const (
	// DefaultMessage is sent to characters without an entry in the table.
	DefaultMessage = "Tell me about your work and space weather."
	// FollowUpMessage is the second turn of a memory check.
	FollowUpMessage = "Can you elaborate on that last point you made?"
)

var openingMessages = map[string]string{
	"pilot":                 "Tell me about a time when space weather affected your flight operations.",
	"power-operator":        "How do you handle grid stability during a geomagnetic storm?",
	"astronaut":             "Describe your experience with radiation exposure during a solar flare.",
	"satellite-operator":    "What happens to your satellites during a CME event?",
	"emergency-coordinator": "How does space weather impact emergency response coordination?",
	"scientist":             "Explain how you forecast space weather events for operational users.",
}

// contextKeywords hint that a follow-up answer refers back to the first turn.
var contextKeywords = []string{"that", "mentioned", "discussed", "previous"}

// ValidationError reports a persona table that cannot drive a run.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s=%s: %s", e.Field, e.Value, e.Message)
}

// Personas maps a character id to the opening message sent to it.
type Personas struct {
	messages map[string]string
	fallback string
}

// NewPersonas returns the built-in table with overrides applied on top.
// Empty override values are ignored.
func NewPersonas(overrides map[string]string) *Personas {
	p := &Personas{messages: make(map[string]string, len(openingMessages)), fallback: DefaultMessage}
	for id, msg := range openingMessages {
		p.messages[id] = msg
	}
	for id, msg := range overrides {
		if msg = strings.TrimSpace(msg); msg != "" {
			p.messages[id] = msg
		}
	}
	return p
}

// Message returns the opening message for id, or the default entry.
func (p *Personas) Message(id string) string {
	if msg, ok := p.messages[id]; ok {
		return msg
	}
	return p.fallback
}

// Validate checks that every id has its own entry and the default is set.
func (p *Personas) Validate(ids []string) error {
	if strings.TrimSpace(p.fallback) == "" {
		return ValidationError{Field: "default", Value: "", Message: "default message is required"}
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return ValidationError{Field: "character", Value: "", Message: "character id must not be empty"}
		}
		if seen[id] {
			return ValidationError{Field: "character", Value: id, Message: "declared twice"}
		}
		seen[id] = true
		if strings.TrimSpace(p.messages[id]) == "" {
			return ValidationError{Field: "messages", Value: id, Message: "no opening message for character"}
		}
	}
	return nil
}

// looksContextual is an advisory heuristic only; it never decides pass/fail.
func looksContextual(response string) bool {
	text := strings.ToLower(response)
	for _, word := range contextKeywords {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
