package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"top_criteria_generator/catalog"
	"top_criteria_generator/generator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

type harness struct {
	srv   *Server
	llm   *generator.MockLLM
	store *catalog.Store
}

var mockSettings = generator.LLMSettings{Provider: "mock", Model: "scoreboard"}

func newHarness(t *testing.T, settings generator.LLMSettings, fn func(context.Context, generator.Request) (generator.Response, error)) *harness {
	t.Helper()
	store, err := catalog.Default()
	require.NoError(t, err)
	if fn == nil {
		fn = generator.NewScoreboardLLM(nil).Complete
	}
	llm := &generator.MockLLM{Fn: fn}
	agent, err := generator.NewAgent(llm)
	require.NoError(t, err)
	srv, err := New(agent, Options{Settings: settings, Catalog: store})
	require.NoError(t, err)
	return &harness{srv: srv, llm: llm, store: store}
}

func (h *harness) validBody(t *testing.T) []byte {
	t.Helper()
	page, ok := h.store.PageBySlug("fast-payout")
	require.True(t, ok)
	raw, err := json.Marshal(map[string]any{
		"pageContent": page,
		"casinos":     h.store.Casinos(),
		"criteria":    "fast payout analysis",
	})
	require.NoError(t, err)
	return raw
}

func (h *harness) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body
}

func TestGenerateMalformedBody(t *testing.T) {
	h := newHarness(t, mockSettings, nil)
	for _, body := range []string{`{"pageContent":`, `not json`, `{"criteria":"x"} {"extra":1}`} {
		rec := h.do(t, http.MethodPost, "/generate", []byte(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		got := decodeError(t, rec)
		assert.Equal(t, MsgInvalidBody, got.Error)
		assert.Equal(t, CodeInvalidRequest, got.Code)
	}
	assert.Zero(t, h.llm.Calls())
}

func TestGenerateMissingFields(t *testing.T) {
	h := newHarness(t, mockSettings, nil)
	page, _ := h.store.PageBySlug("fast-payout")

	tests := []struct {
		name string
		body map[string]any
		want []string
	}{
		{"empty object", map[string]any{}, []string{"pageContent", "casinos", "criteria"}},
		{"no casinos", map[string]any{"pageContent": page, "criteria": "x"}, []string{"casinos"}},
		{"empty casinos", map[string]any{"pageContent": page, "casinos": []any{}, "criteria": "x"}, []string{"casinos"}},
		{"blank criteria", map[string]any{"pageContent": page, "casinos": h.store.Casinos(), "criteria": "  "}, []string{"criteria"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.body)
			require.NoError(t, err)
			rec := h.do(t, http.MethodPost, "/generate", raw)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			got := decodeError(t, rec)
			assert.Equal(t, MsgMissingFields, got.Error)
			assert.Equal(t, tt.want, got.Details)
		})
	}
	assert.Zero(t, h.llm.Calls(), "the capability is never called for invalid input")
}

func TestGenerateMissingCredential(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "")
	h := newHarness(t, generator.LLMSettings{Provider: "openai", Model: "gpt-4o", APIKeyEnv: "TEST_SERVER_KEY"}, nil)

	rec := h.do(t, http.MethodPost, "/generate", h.validBody(t))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	got := decodeError(t, rec)
	assert.Equal(t, "TEST_SERVER_KEY not configured", got.Error)
	assert.Equal(t, CodeConfiguration, got.Code)
	assert.Zero(t, h.llm.Calls())
}

func TestGenerateSuccess(t *testing.T) {
	h := newHarness(t, mockSettings, nil)

	for _, path := range []string{"/generate", "/api/ai-generate"} {
		rec := h.do(t, http.MethodPost, path, h.validBody(t))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got struct {
			Success    bool            `json:"success"`
			Data       json.RawMessage `json:"data"`
			TokensUsed int64           `json:"tokensUsed"`
			Duration   *int64          `json:"duration"`
			RunID      string          `json:"runId"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, got.Success)
		require.NotNil(t, got.Duration)
		assert.GreaterOrEqual(t, *got.Duration, int64(0))
		assert.Positive(t, got.TokensUsed)
		assert.NotEmpty(t, got.RunID)

		_, err := h.srv.agent.Registry().Validate(got.Data)
		assert.NoError(t, err, "data must be a valid snapshot")
	}
	assert.EqualValues(t, 2, h.llm.Calls())
}

func TestGenerateModelFailure(t *testing.T) {
	h := newHarness(t, mockSettings, func(context.Context, generator.Request) (generator.Response, error) {
		return generator.Response{}, &generator.ModelInvocationError{
			Kind: generator.KindRateLimit, Provider: "mock", StatusCode: 429, Err: errors.New("rate limit reached"),
		}
	})

	rec := h.do(t, http.MethodPost, "/generate", h.validBody(t))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	got := decodeError(t, rec)
	assert.Equal(t, CodeModelInvocation, got.Code)
	assert.Equal(t, "rate limit reached", got.Error)
	assert.Equal(t, "mock", got.Provider)
	assert.Equal(t, string(generator.KindRateLimit), got.Kind)
	assert.EqualValues(t, 1, h.llm.Calls())
}

func TestGenerateContentValidationFailure(t *testing.T) {
	h := newHarness(t, mockSettings, func(context.Context, generator.Request) (generator.Response, error) {
		return generator.Response{Raw: []byte(`{"updatedAt":"yesterday","items":[]}`)}, nil
	})

	rec := h.do(t, http.MethodPost, "/generate", h.validBody(t))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	got := decodeError(t, rec)
	assert.Equal(t, MsgValidationFailed, got.Error)
	assert.Equal(t, CodeContentValidation, got.Code)
	assert.NotEmpty(t, got.Details)
	assert.Equal(t, generator.ValidationHint, got.Hint)
}

func TestPreview(t *testing.T) {
	h := newHarness(t, mockSettings, nil)
	raw, err := os.ReadFile(filepath.Join("..", "schema", "testdata", "snapshot.json"))
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/preview", raw)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "VikingFortune")

	rec = h.do(t, http.MethodPost, "/preview", []byte(`{"items":[]}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	got := decodeError(t, rec)
	assert.Equal(t, CodeContentValidation, got.Code)
	assert.NotEmpty(t, got.Details)
	assert.Zero(t, h.llm.Calls())
}

func TestHealth(t *testing.T) {
	h := newHarness(t, mockSettings, nil)
	rec := h.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "mock", got["provider"])
	assert.Equal(t, "scoreboard", got["model"])
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t, mockSettings, nil)
	rec := h.do(t, http.MethodGet, "/generate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewRequiresAgent(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}
