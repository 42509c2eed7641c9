package suite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Outcome is the result of one check.
type Outcome struct {
	Success    bool   `json:"success"`
	ThreadID   string `json:"thread_id,omitempty"`
	Response   string `json:"response,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	// Count is the number of characters (info) or history entries (history).
	Count int `json:"count,omitempty"`
	// Contextual is the advisory keyword heuristic of memory checks.
	Contextual *bool `json:"contextual,omitempty"`
	DurationMS int64 `json:"duration_ms"`
}

// Results is the aggregate of one run and the shape of the results artifact.
type Results struct {
	RunID      string    `json:"run_id"`
	BaseURL    string    `json:"base_url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Characters is the declared run order.
	Characters               []string           `json:"characters"`
	CharacterInfo            Outcome            `json:"character_info"`
	IndividualTests          map[string]Outcome `json:"individual_tests"`
	MemoryTests              map[string]Outcome `json:"memory_tests"`
	ConversationHistoryTests map[string]Outcome `json:"conversation_history_tests"`
	Summary                  Summary            `json:"summary"`
}

// NewResults returns an empty aggregate for a run.
func NewResults(runID, baseURL string, characters []string, startedAt time.Time) *Results {
	return &Results{
		RunID:                    runID,
		BaseURL:                  baseURL,
		StartedAt:                startedAt,
		Characters:               append([]string(nil), characters...),
		IndividualTests:          map[string]Outcome{},
		MemoryTests:              map[string]Outcome{},
		ConversationHistoryTests: map[string]Outcome{},
	}
}

// Tally counts passed and attempted checks.
type Tally struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

func (t Tally) add(ok bool) Tally {
	t.Total++
	if ok {
		t.Passed++
	}
	return t
}

func (t Tally) plus(o Tally) Tally {
	return Tally{Passed: t.Passed + o.Passed, Total: t.Total + o.Total}
}

// Percent is the pass ratio in percent; 0 when nothing was attempted.
func (t Tally) Percent() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Passed) / float64(t.Total) * 100
}

// OK reports whether at least one check ran and all of them passed.
func (t Tally) OK() bool {
	return t.Total > 0 && t.Passed == t.Total
}

// Summary holds per-category and overall counts plus the failing checks.
type Summary struct {
	Info       Tally    `json:"character_info"`
	Individual Tally    `json:"individual_tests"`
	Memory     Tally    `json:"memory_tests"`
	History    Tally    `json:"conversation_history_tests"`
	Overall    Tally    `json:"overall"`
	Failed     []string `json:"failed"`
}

// Summarize computes the summary of r. It is a pure function of the outcomes,
// so a reloaded artifact summarizes to the same counts.
func Summarize(r *Results) Summary {
	s := Summary{Failed: []string{}}

	s.Info = s.Info.add(r.CharacterInfo.Success)
	if !r.CharacterInfo.Success {
		s.Failed = append(s.Failed, "Character info endpoint")
	}
	for _, id := range r.order(r.IndividualTests) {
		ok := r.IndividualTests[id].Success
		s.Individual = s.Individual.add(ok)
		if !ok {
			s.Failed = append(s.Failed, id+" individual endpoint")
		}
	}
	for _, id := range r.order(r.MemoryTests) {
		ok := r.MemoryTests[id].Success
		s.Memory = s.Memory.add(ok)
		if !ok {
			s.Failed = append(s.Failed, id+" memory functionality")
		}
	}
	for _, id := range r.order(r.ConversationHistoryTests) {
		ok := r.ConversationHistoryTests[id].Success
		s.History = s.History.add(ok)
		if !ok {
			s.Failed = append(s.Failed, id+" conversation history")
		}
	}
	s.Overall = s.Info.plus(s.Individual).plus(s.Memory).plus(s.History)
	return s
}

// order lists the keys of m in declared order, then any others sorted.
func (r *Results) order(m map[string]Outcome) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, id := range r.Characters {
		if _, ok := m[id]; ok && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	var rest []string
	for id := range m {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Marshal encodes r as indented JSON.
func (r *Results) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes the artifact to path, replacing any previous file.
func (r *Results) Save(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create results dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// LoadResults reads an artifact written by Save.
func LoadResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return ParseResults(data)
}

// ParseResults decodes an artifact.
func ParseResults(data []byte) (*Results, error) {
	var r Results
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	if r.IndividualTests == nil {
		r.IndividualTests = map[string]Outcome{}
	}
	if r.MemoryTests == nil {
		r.MemoryTests = map[string]Outcome{}
	}
	if r.ConversationHistoryTests == nil {
		r.ConversationHistoryTests = map[string]Outcome{}
	}
	return &r, nil
}
