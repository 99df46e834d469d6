package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrRunFinished is returned when Execute is called on a run that already ran.
var ErrRunFinished = errors.New("generation run already executed")

// Transition records one state change of a run.
type Transition struct {
	From State
	To   State
	At   time.Time
	Err  error
}

// Run is a single generation attempt, idle → prompting → awaiting-model →
// validating → completed|failed. It executes at most once.
type Run struct {
	ID      string
	Context GenerationContext

	agent    *Agent
	observer func(Transition)

	mu      sync.Mutex
	started bool
	state   State
	history []Transition
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// History returns a copy of the transitions so far.
func (r *Run) History() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.history...)
}

func (r *Run) advance(to State, err error) {
	r.mu.Lock()
	t := Transition{From: r.state, To: to, At: time.Now(), Err: err}
	r.state = to
	r.history = append(r.history, t)
	obs := r.observer
	r.mu.Unlock()
	if obs != nil {
		obs(t)
	}
}

func (r *Run) fail(err error) error {
	r.advance(StateFailed, err)
	return err
}

// Execute performs the run.
func (r *Run) Execute(ctx context.Context) (Outcome, error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return Outcome{}, ErrRunFinished
	}
	r.started = true
	r.mu.Unlock()

	a := r.agent
	log := a.log.With(
		zap.String("run_id", r.ID),
		zap.String("page", r.Context.Page.Slug),
		zap.String("provider", a.llm.Provider()),
	)
	start := time.Now()

	r.advance(StatePrompting, nil)
	prompt := a.prompts.Prompt(r.Context)
	eligible := len(a.prompts.Eligible(r.Context.Casinos))
	log.Debug("prompt built",
		zap.Int("prompt_bytes", len(prompt.User)),
		zap.Int("casinos", len(r.Context.Casinos)),
		zap.Int("eligible", eligible),
		zap.String("criteria", r.Context.Criteria),
	)

	r.advance(StateAwaiting, nil)
	resp, err := a.invoke(ctx, r, prompt)
	if err != nil {
		var mie *ModelInvocationError
		if errors.As(err, &mie) {
			log.Error("model invocation failed",
				zap.String("kind", string(mie.Kind)),
				zap.Int("status", mie.StatusCode),
				zap.String("error", truncate(fmt.Sprintf("%+v", mie.Err), 512)),
				zap.Duration("elapsed", time.Since(start)),
			)
		} else {
			log.Error("model invocation not attempted", zap.Error(err))
		}
		return Outcome{}, r.fail(err)
	}

	r.advance(StateValidate, nil)
	snap, warns, err := PostProcess(a.registry, resp.Raw, r.Context, eligible)
	if err != nil {
		var cve *ContentValidationError
		if errors.As(err, &cve) {
			log.Warn("generated content failed validation",
				zap.Int("violations", len(cve.Violations)),
				zap.Strings("details", head(cve.Details(), 10)),
			)
		}
		return Outcome{}, r.fail(err)
	}

	out := Outcome{
		RunID:      r.ID,
		Snapshot:   snap,
		TokensUsed: resp.TotalTokens,
		Duration:   time.Since(start),
		Model:      resp.Model,
		Warnings:   warns,
	}
	r.advance(StateCompleted, nil)
	log.Info("generation completed",
		zap.Duration("duration", out.Duration),
		zap.Int64("tokens", out.TokensUsed),
		zap.String("model", out.Model),
		zap.Strings("warnings", warns),
	)
	return out, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

func head(ss []string, n int) []string {
	if len(ss) > n {
		return ss[:n]
	}
	return ss
}
