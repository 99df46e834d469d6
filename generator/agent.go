package generator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"top_criteria_generator/schema"
)

// DefaultTimeout bounds one model invocation.
const DefaultTimeout = 90 * time.Second

// SchemaName is the name the envelope schema is registered under with the
// provider.
const SchemaName = "criteria_snapshot"

// Agent runs the generation pipeline. It holds no per-run state and may be
// shared across goroutines.
type Agent struct {
	llm         LLMClient
	registry    *schema.Registry
	prompts     PromptBuilder
	temperature float64
	timeout     time.Duration
	dialect     schema.Dialect
	log         *zap.Logger
}

type AgentOption func(*Agent)

func WithRegistry(r *schema.Registry) AgentOption {
	return func(a *Agent) { a.registry = r }
}

// WithEntityLimit overrides DefaultEntityLimit.
func WithEntityLimit(n int) AgentOption {
	return func(a *Agent) { a.prompts.EntityLimit = n }
}

func WithTemperature(t float64) AgentOption {
	return func(a *Agent) { a.temperature = t }
}

// WithTimeout overrides DefaultTimeout. Zero keeps the default.
func WithTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) AgentOption {
	return func(a *Agent) { a.log = l }
}

func NewAgent(llm LLMClient, opts ...AgentOption) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	a := &Agent{
		llm:         llm,
		registry:    schema.NewRegistry(),
		temperature: DefaultTemperature,
		timeout:     DefaultTimeout,
		dialect:     schema.OpenAIStrict,
		log:         zap.NewNop(),
	}
	if llm.Provider() == "gemini" {
		a.dialect = schema.Gemini
	}
	for _, o := range opts {
		o(a)
	}
	a.prompts.Constraints = a.registry.Constraints()
	return a, nil
}

// Provider names the backing capability.
func (a *Agent) Provider() string { return a.llm.Provider() }

// Registry returns the schema registry used for validation.
func (a *Agent) Registry() *schema.Registry { return a.registry }

// Prompt renders the prompt Generate would send for gc.
func (a *Agent) Prompt(gc GenerationContext) Prompt {
	return a.prompts.Prompt(gc)
}

// Generate makes a single attempt: prompt, invoke, validate. It never retries.
// Errors are *ConfigurationError, *ModelInvocationError or
// *ContentValidationError.
func (a *Agent) Generate(ctx context.Context, gc GenerationContext) (Outcome, error) {
	return a.NewRun(gc, nil).Execute(ctx)
}

// NewRun prepares a run for gc. observer, if set, sees every state change.
func (a *Agent) NewRun(gc GenerationContext, observer func(Transition)) *Run {
	return &Run{
		ID:       uuid.NewString(),
		Context:  gc,
		agent:    a,
		state:    StateIdle,
		observer: observer,
	}
}

func (a *Agent) invoke(ctx context.Context, run *Run, p Prompt) (Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	subject := run.Context
	subject.Casinos = a.prompts.Eligible(run.Context.Casinos)
	resp, err := a.llm.Complete(callCtx, Request{
		System:      p.System,
		Prompt:      p.User,
		SchemaName:  SchemaName,
		Schema:      a.registry.JSONSchema(a.dialect),
		Temperature: a.temperature,
		Subject:     subject,
	})
	if err == nil {
		return resp, nil
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return Response{}, err
	}
	var mie *ModelInvocationError
	if !errors.As(err, &mie) {
		mie = &ModelInvocationError{Kind: KindTransport, Provider: a.llm.Provider(), Err: err}
	}
	// the explicit deadline is ours; report it as a timeout whatever the
	// transport made of it
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		mie.Kind = KindTimeout
	}
	return Response{}, mie
}
