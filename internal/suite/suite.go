// Package suite runs the character API check sequence and aggregates its outcomes.
//
// A run is strictly sequential: the characters index first, then for every
// character a basic chat, and only when that produced a thread a memory
// follow-up and a history lookup. Checks never return errors; every failure
// becomes a negative Outcome carrying the diagnostic detail.
package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/charcheck/internal/charapi"
	"github.com/3cpo-dev/charcheck/internal/telemetry"
	"github.com/3cpo-dev/charcheck/pkg/api"
)

const previewLen = 200

// Check categories, used as metric labels.
const (
	CategoryInfo    = "info"
	CategoryBasic   = "basic"
	CategoryMemory  = "memory"
	CategoryHistory = "history"
)

// API is the part of the character API a run needs.
type API interface {
	Characters(ctx context.Context) (*api.CharactersResponse, error)
	Chat(ctx context.Context, character string, req *api.ChatRequest) (*api.ChatResponse, error)
	Conversation(ctx context.Context, threadID string) (*api.ConversationResponse, error)
}

// Generation are the sampling parameters sent with every chat request.
type Generation struct {
	MaxTokens         int
	FollowUpMaxTokens int
	Temperature       float64
}

// DefaultGeneration matches what the service documents for its characters.
func DefaultGeneration() Generation {
	return Generation{MaxTokens: 500, FollowUpMaxTokens: 300, Temperature: 0.7}
}

// Config wires a Runner.
type Config struct {
	BaseURL    string
	Characters []string
	Personas   *Personas
	Generation Generation
	Pacer      Pacer
	Out        io.Writer
	Metrics    *telemetry.Collector
	// Now is the clock; tests may pin it.
	Now func() time.Time
}

// Runner executes the check sequence against one deployment.
type Runner struct {
	client     API
	baseURL    string
	characters []string
	personas   *Personas
	gen        Generation
	pacer      Pacer
	out        *Printer
	metrics    *telemetry.Collector
	now        func() time.Time
}

// NewRunner validates the persona table against the declared characters.
func NewRunner(client API, cfg Config) (*Runner, error) {
	if client == nil {
		return nil, errors.New("suite: client is required")
	}
	if cfg.Characters == nil {
		cfg.Characters = Characters
	}
	if cfg.Personas == nil {
		cfg.Personas = NewPersonas(nil)
	}
	if err := cfg.Personas.Validate(cfg.Characters); err != nil {
		return nil, fmt.Errorf("suite: %w", err)
	}
	if cfg.Generation == (Generation{}) {
		cfg.Generation = DefaultGeneration()
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		client:     client,
		baseURL:    cfg.BaseURL,
		characters: append([]string(nil), cfg.Characters...),
		personas:   cfg.Personas,
		gen:        cfg.Generation,
		pacer:      cfg.Pacer,
		out:        NewPrinter(cfg.Out),
		metrics:    cfg.Metrics,
		now:        cfg.Now,
	}, nil
}

// Printer exposes the runner's output so callers can print the summary.
func (r *Runner) Printer() *Printer { return r.out }

// InfoCheck fetches the characters index.
func (r *Runner) InfoCheck(ctx context.Context) Outcome {
	start := r.now()
	r.out.Step("Testing character info endpoint...")

	resp, err := r.client.Characters(ctx)
	if err != nil {
		o := failure(err)
		r.out.Fail("Character info endpoint failed: %s", describe(o))
		return r.finish(CategoryInfo, "", start, o)
	}
	if resp.Characters == nil {
		o := Outcome{StatusCode: 200, Error: "response has no characters collection"}
		r.out.Fail("Character info endpoint failed: %s", o.Error)
		return r.finish(CategoryInfo, "", start, o)
	}

	r.out.Pass("Character info endpoint working")
	r.out.Detail("Found %d characters", len(resp.Characters))
	ids := make([]string, 0, len(resp.Characters))
	for id := range resp.Characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		info := resp.Characters[id]
		r.out.Detail("- %s (%s)", info.Name, info.Role)
	}
	return r.finish(CategoryInfo, "", start, Outcome{Success: true, StatusCode: 200, Count: len(resp.Characters)})
}

// BasicCheck sends one opening message to a character. It succeeds only when
// the service answers with a thread id.
func (r *Runner) BasicCheck(ctx context.Context, character string) Outcome {
	start := r.now()
	r.out.Step("Testing %s character...", character)
	return r.finish(CategoryBasic, character, start, r.openThread(ctx, character))
}

// openThread sends the opening message and reports the outcome without
// recording it, so callers attribute it to their own category.
func (r *Runner) openThread(ctx context.Context, character string) Outcome {
	resp, err := r.client.Chat(ctx, character, &api.ChatRequest{
		Messages:    []api.ChatMessage{{Role: "user", Content: r.personas.Message(character)}},
		MaxTokens:   r.gen.MaxTokens,
		Temperature: r.gen.Temperature,
	})
	if err != nil {
		o := failure(err)
		r.out.Fail("%s endpoint failed: %s", character, describe(o))
		if o.StatusCode != 0 && o.StatusCode != 200 {
			r.out.Detail("Error: %s", o.Error)
		}
		return o
	}

	o := Outcome{Success: true, ThreadID: resp.ThreadID, Response: resp.Response, StatusCode: 200}
	if resp.ThreadID == "" {
		o.Success = false
		o.Error = "response has no thread_id"
		r.out.Fail("%s endpoint returned no thread ID", character)
		return o
	}

	r.out.Pass("%s endpoint working", character)
	r.out.Detail("Response length: %d", len(resp.Response))
	r.out.Detail("Thread ID: %s", orNA(resp.ThreadID))
	r.out.Detail("Status: %s", orNA(resp.Status))
	if resp.Response != "" {
		r.out.Detail("Preview: %s", preview(resp.Response, previewLen))
	}
	return o
}

// MemoryCheck opens a fresh thread and verifies a follow-up stays on it.
func (r *Runner) MemoryCheck(ctx context.Context, character string) Outcome {
	r.out.Step("Testing memory for %s...", character)

	start := r.now()
	first := r.openThread(ctx, character)
	if !first.Success {
		o := Outcome{StatusCode: first.StatusCode, Error: "opening message failed: " + first.Error}
		r.out.Fail("Memory check for %s could not start a thread", character)
		return r.finish(CategoryMemory, character, start, o)
	}
	threadID := first.ThreadID

	if err := r.pacer.WaitFollowUp(ctx); err != nil {
		return r.finish(CategoryMemory, character, start, Outcome{ThreadID: threadID, Error: err.Error()})
	}

	resp, err := r.client.Chat(ctx, character, &api.ChatRequest{
		Messages:    []api.ChatMessage{{Role: "user", Content: FollowUpMessage}},
		ThreadID:    threadID,
		MaxTokens:   r.gen.FollowUpMaxTokens,
		Temperature: r.gen.Temperature,
	})
	if err != nil {
		o := failure(err)
		o.ThreadID = threadID
		r.out.Fail("Follow-up request failed for %s: %s", character, describe(o))
		return r.finish(CategoryMemory, character, start, o)
	}

	if resp.ThreadID != threadID {
		o := Outcome{
			ThreadID:   threadID,
			Response:   resp.Response,
			StatusCode: 200,
			Error:      fmt.Sprintf("thread_id mismatch: sent %q, got %q", threadID, resp.ThreadID),
		}
		r.out.Fail("Thread ID mismatch for %s", character)
		return r.finish(CategoryMemory, character, start, o)
	}

	contextual := looksContextual(resp.Response)
	r.out.Pass("Memory working for %s", character)
	r.out.Detail("Follow-up response length: %d", len(resp.Response))
	if contextual {
		r.out.Detail("Response appears contextually aware")
	} else {
		r.out.Warn("Response may not be fully contextual")
		log.Warn().Str("character", character).Str("thread_id", threadID).Msg("follow-up response shows no context keywords")
	}
	return r.finish(CategoryMemory, character, start, Outcome{
		Success:    true,
		ThreadID:   threadID,
		Response:   resp.Response,
		StatusCode: 200,
		Contextual: &contextual,
	})
}

// HistoryCheck looks up the stored conversation of a thread.
func (r *Runner) HistoryCheck(ctx context.Context, character, threadID string) Outcome {
	start := r.now()
	r.out.Step("Testing conversation history for %s...", character)

	resp, err := r.client.Conversation(ctx, threadID)
	if err != nil {
		o := failure(err)
		o.ThreadID = threadID
		r.out.Fail("Conversation history failed: %s", describe(o))
		return r.finish(CategoryHistory, character, start, o)
	}
	if resp.History == nil {
		o := Outcome{ThreadID: threadID, StatusCode: 200, Error: "response has no history collection"}
		r.out.Fail("Conversation history failed: %s", o.Error)
		return r.finish(CategoryHistory, character, start, o)
	}

	r.out.Pass("Conversation history working")
	r.out.Detail("Thread ID: %s", orNA(resp.ThreadID))
	r.out.Detail("History entries: %d", len(resp.History))
	return r.finish(CategoryHistory, character, start, Outcome{
		Success:    true,
		ThreadID:   threadID,
		StatusCode: 200,
		Count:      len(resp.History),
	})
}

// RunAll performs the whole sequence and returns the aggregate with its
// summary filled in. The only error is cancellation of ctx, in which case
// the partial aggregate is returned alongside it.
func (r *Runner) RunAll(ctx context.Context) (*Results, error) {
	res := NewResults(uuid.NewString(), r.baseURL, r.characters, r.now())
	logger := log.With().Str("run_id", res.RunID).Logger()
	logger.Info().Str("base_url", r.baseURL).Int("characters", len(r.characters)).Msg("Starting character endpoint checks")

	r.out.line("Starting comprehensive character endpoint tests")
	r.out.line(strings.Repeat("=", ruleWidth))

	res.CharacterInfo = r.InfoCheck(ctx)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for i, id := range r.characters {
		r.out.Section("Testing " + strings.ToUpper(id))

		basic := r.BasicCheck(ctx, id)
		res.IndividualTests[id] = basic
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// A successful basic check always carries a thread id.
		if basic.Success {
			res.MemoryTests[id] = r.MemoryCheck(ctx, id)
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.ConversationHistoryTests[id] = r.HistoryCheck(ctx, id, basic.ThreadID)
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		if i < len(r.characters)-1 {
			if err := r.pacer.WaitBetweenCharacters(ctx); err != nil {
				return res, err
			}
		}
	}

	res.FinishedAt = r.now()
	res.Summary = Summarize(res)
	logger.Info().
		Int("passed", res.Summary.Overall.Passed).
		Int("total", res.Summary.Overall.Total).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("Character endpoint checks finished")
	return res, nil
}

func (r *Runner) finish(category, character string, start time.Time, o Outcome) Outcome {
	elapsed := r.now().Sub(start)
	o.DurationMS = elapsed.Milliseconds()

	result := "pass"
	if !o.Success {
		result = "fail"
	}
	labels := map[string]string{"category": category, "result": result}
	if character != "" {
		labels["character"] = character
	}
	r.metrics.Counter(telemetry.ChecksTotal, 1, labels)
	r.metrics.Timer(telemetry.CheckDuration, elapsed, map[string]string{"category": category})

	ev := log.Debug()
	if !o.Success {
		ev = log.Warn().Str("error", o.Error).Int("status", o.StatusCode)
	}
	ev.Str("category", category).Str("character", character).Dur("elapsed", elapsed).Msg("check finished")
	return o
}

// failure converts a client error into a negative outcome. Non-200 answers
// keep the server's error message (or raw body); anything else keeps the
// error text.
func failure(err error) Outcome {
	o := Outcome{Error: err.Error()}
	var apiErr *charapi.Error
	if errors.As(err, &apiErr) {
		o.StatusCode = apiErr.Status
		if apiErr.Code == charapi.CodeHTTPStatus {
			o.Error = apiErr.Message
		}
	}
	return o
}

func describe(o Outcome) string {
	if o.StatusCode != 0 && o.StatusCode != 200 {
		return fmt.Sprintf("%d", o.StatusCode)
	}
	return o.Error
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
