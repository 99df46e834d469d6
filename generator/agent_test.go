package generator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"top_criteria_generator/schema"
)

func newTestAgent(t *testing.T, llm LLMClient, opts ...AgentOption) *Agent {
	t.Helper()
	a, err := NewAgent(llm, append([]AgentOption{WithLogger(zap.NewNop())}, opts...)...)
	require.NoError(t, err)
	return a
}

// scoreboardWith returns a mock that answers like the scoreboard and lets the
// test edit the document first.
func scoreboardWith(t *testing.T, edit func(doc map[string]any)) *MockLLM {
	sb := NewScoreboardLLM(fixedNow)
	return &MockLLM{Fn: func(ctx context.Context, req Request) (Response, error) {
		resp, err := sb.Complete(ctx, req)
		if err != nil || edit == nil {
			return resp, err
		}
		var doc map[string]any
		require.NoError(t, json.Unmarshal(resp.Raw, &doc))
		edit(doc)
		resp.Raw, err = json.Marshal(doc)
		require.NoError(t, err)
		return resp, nil
	}}
}

func docItem(doc map[string]any, i int) map[string]any {
	return doc["items"].([]any)[i].(map[string]any)
}

func TestNewAgentRequiresLLM(t *testing.T) {
	_, err := NewAgent(nil)
	assert.Error(t, err)
}

func TestGenerateEndToEnd(t *testing.T) {
	gc := defaultContext(t)
	a := newTestAgent(t, NewScoreboardLLM(fixedNow))

	out, err := a.Generate(context.Background(), gc)
	require.NoError(t, err)
	require.NotNil(t, out.Snapshot)

	var mostTrusted string
	best := -1.0
	for _, c := range gc.Casinos {
		if c.Metrics.TrustScore > best {
			best, mostTrusted = c.Metrics.TrustScore, c.ID
		}
	}
	require.Equal(t, 96.0, best)

	card, ok := out.Snapshot.Card(schema.MostTrusted)
	require.True(t, ok)
	assert.Equal(t, mostTrusted, card.Common().WinnerCasinoID)
	assert.Equal(t, "vikingfortune", mostTrusted)

	winners := map[schema.Criterion]string{}
	for _, it := range out.Snapshot.Items {
		winners[it.Card.Criterion()] = it.Card.Common().WinnerCasinoID
	}
	assert.Equal(t, map[schema.Criterion]string{
		schema.MostTrusted: "vikingfortune",
		schema.BestBonus:   "neonace",
		schema.BestPayout:  "auroraspin",
		schema.RisingStar:  "luckypine",
		schema.BestGames:   "riverjack",
		schema.FastPayout:  "solarisbet",
	}, winners)

	assert.Empty(t, out.Warnings)
	assert.Positive(t, out.TokensUsed)
	assert.Equal(t, "scoreboard", out.Model)
	_, err = uuid.Parse(out.RunID)
	assert.NoError(t, err)
}

func TestGenerateSendsSchemaAndInstruction(t *testing.T) {
	var got Request
	sb := NewScoreboardLLM(fixedNow)
	llm := &MockLLM{Fn: func(ctx context.Context, req Request) (Response, error) {
		got = req
		return sb.Complete(ctx, req)
	}}
	a := newTestAgent(t, llm, WithEntityLimit(4))

	_, err := a.Generate(context.Background(), defaultContext(t))
	require.NoError(t, err)

	assert.Equal(t, SystemInstruction, got.System)
	assert.Equal(t, DefaultTemperature, got.Temperature)
	assert.Equal(t, SchemaName, got.SchemaName)
	assert.Equal(t, "object", got.Schema["type"])
	assert.Len(t, got.Subject.Casinos, 4, "only eligible casinos reach the model")
	assert.Contains(t, got.Prompt, "entity limit 4")
	assert.EqualValues(t, 1, llm.Calls())
}

func TestGenerateModelFailureIsInvocationError(t *testing.T) {
	llm := &MockLLM{Fn: func(context.Context, Request) (Response, error) {
		return Response{}, errors.New("connection reset by peer")
	}}
	_, err := newTestAgent(t, llm).Generate(context.Background(), defaultContext(t))

	var mie *ModelInvocationError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, KindTransport, mie.Kind)
	assert.Contains(t, mie.Error(), "connection reset by peer")
	var cve *ContentValidationError
	assert.False(t, errors.As(err, &cve))
	assert.EqualValues(t, 1, llm.Calls(), "no retry")
}

func TestGenerateBoundViolationIsContentValidationError(t *testing.T) {
	llm := scoreboardWith(t, func(doc map[string]any) {
		item := docItem(doc, 0)
		item["keyStats"] = item["keyStats"].([]any)[:1]
	})
	_, err := newTestAgent(t, llm).Generate(context.Background(), defaultContext(t))

	var cve *ContentValidationError
	require.ErrorAs(t, err, &cve)
	assert.Equal(t, ValidationHint, cve.Hint)
	assert.Contains(t, strings.Join(cve.Details(), "\n"), "items[0].keyStats")
	var mie *ModelInvocationError
	assert.False(t, errors.As(err, &mie))
}

func TestGenerateRejectsFencedButInvalidJSON(t *testing.T) {
	llm := &MockLLM{Fn: func(context.Context, Request) (Response, error) {
		return Response{Raw: []byte("```json\n{\"items\": []}\n```")}, nil
	}}
	_, err := newTestAgent(t, llm).Generate(context.Background(), defaultContext(t))

	var cve *ContentValidationError
	require.ErrorAs(t, err, &cve)
	assert.True(t, cve.Violations.Has(schema.RuleCardinality))
}

func TestGenerateTimeout(t *testing.T) {
	llm := &MockLLM{Fn: func(ctx context.Context, _ Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}}
	a := newTestAgent(t, llm, WithTimeout(20*time.Millisecond))

	_, err := a.Generate(context.Background(), defaultContext(t))
	var mie *ModelInvocationError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, KindTimeout, mie.Kind)
}

func TestGenerateCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestAgent(t, NewScoreboardLLM(fixedNow)).Generate(ctx, defaultContext(t))

	var mie *ModelInvocationError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, KindCanceled, mie.Kind)
}

func TestGenerateConfigurationErrorPassesThrough(t *testing.T) {
	llm := &MockLLM{Fn: func(context.Context, Request) (Response, error) {
		return Response{}, &ConfigurationError{Setting: "OPENAI_API_KEY"}
	}}
	_, err := newTestAgent(t, llm).Generate(context.Background(), defaultContext(t))

	var cfg *ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "OPENAI_API_KEY not configured", err.Error())
}

func TestGenerateWarnings(t *testing.T) {
	gc := defaultContext(t)
	gc.Casinos = gc.Casinos[:3]
	out, err := newTestAgent(t, NewScoreboardLLM(fixedNow)).Generate(context.Background(), gc)
	require.NoError(t, err)

	joined := strings.Join(out.Warnings, "\n")
	assert.Contains(t, joined, "only 3 casinos supplied")
	assert.Regexp(t, `casino \S+ wins [2-4] categories`, joined)
}

func TestGenerateFlagsUnknownWinner(t *testing.T) {
	llm := scoreboardWith(t, func(doc map[string]any) {
		docItem(doc, 2)["winnerCasinoId"] = "ghost"
	})
	out, err := newTestAgent(t, llm).Generate(context.Background(), defaultContext(t))
	require.NoError(t, err)
	assert.Contains(t, strings.Join(out.Warnings, "\n"), `best_payout winner "ghost"`)
}

func TestGenerateUniqueWinnersEnforced(t *testing.T) {
	llm := scoreboardWith(t, func(doc map[string]any) {
		docItem(doc, 1)["winnerCasinoId"] = "vikingfortune"
	})
	a := newTestAgent(t, llm, WithRegistry(schema.NewRegistry(schema.WithUniqueWinners())))

	_, err := a.Generate(context.Background(), defaultContext(t))
	var cve *ContentValidationError
	require.ErrorAs(t, err, &cve)
	assert.True(t, cve.Violations.Has(schema.RuleCardinality))
}

func TestRunTransitions(t *testing.T) {
	a := newTestAgent(t, NewScoreboardLLM(fixedNow))
	var seen []State
	run := a.NewRun(defaultContext(t), func(tr Transition) { seen = append(seen, tr.To) })
	assert.Equal(t, StateIdle, run.State())

	_, err := run.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []State{StatePrompting, StateAwaiting, StateValidate, StateCompleted}, seen)
	assert.True(t, run.State().Terminal())
	assert.Len(t, run.History(), 4)

	_, err = run.Execute(context.Background())
	assert.ErrorIs(t, err, ErrRunFinished)
}

func TestRunFailedTransition(t *testing.T) {
	llm := &MockLLM{Fn: func(context.Context, Request) (Response, error) {
		return Response{}, errors.New("boom")
	}}
	run := newTestAgent(t, llm).NewRun(defaultContext(t), nil)
	_, err := run.Execute(context.Background())
	require.Error(t, err)

	hist := run.History()
	require.NotEmpty(t, hist)
	last := hist[len(hist)-1]
	assert.Equal(t, StateAwaiting, last.From)
	assert.Equal(t, StateFailed, last.To)
	assert.Equal(t, err, last.Err)
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 3))

	// "é" is two bytes; cutting inside it backs off to the rune start
	got := truncate("aéb", 2)
	assert.Equal(t, "a…", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "aé…", truncate("aébc", 3))
}
