package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"top_criteria_generator/catalog"
	"top_criteria_generator/generator"
	"top_criteria_generator/schema"
	"top_criteria_generator/server"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func backend(t *testing.T, fn func(context.Context, generator.Request) (generator.Response, error)) (*httptest.Server, *catalog.Store) {
	t.Helper()
	store, err := catalog.Default()
	require.NoError(t, err)
	agent, err := generator.NewAgent(&generator.MockLLM{Fn: fn})
	require.NoError(t, err)
	srv, err := server.New(agent, server.Options{Settings: generator.LLMSettings{Provider: "mock"}, Catalog: store})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, store
}

func request(t *testing.T, store *catalog.Store) Request {
	t.Helper()
	page, ok := store.PageBySlug("fast-payout")
	require.True(t, ok)
	return Request{PageContent: page, Casinos: store.Casinos(), Criteria: "fast payout analysis"}
}

func TestGenerateTracksProgress(t *testing.T) {
	ts, store := backend(t, generator.NewScoreboardLLM(nil).Complete)

	var seen []State
	c := New(ts.URL, WithObserver(func(s State) { seen = append(seen, s) }))
	assert.Equal(t, StatusIdle, c.State().Status)

	res, err := c.Generate(context.Background(), request(t, store))
	require.NoError(t, err)

	require.NotNil(t, res.Snapshot)
	assert.Len(t, res.Snapshot.Items, len(schema.Criteria))
	card, ok := res.Snapshot.Card(schema.MostTrusted)
	require.True(t, ok)
	assert.Equal(t, "vikingfortune", card.Common().WinnerCasinoID)
	assert.Positive(t, res.TokensUsed)
	assert.NotEmpty(t, res.RunID)

	var progress []int
	for _, s := range seen {
		progress = append(progress, s.Progress)
	}
	assert.Equal(t, []int{ProgressPreparing, ProgressAnalyzing, ProgressProcessing, ProgressDone}, progress)
	assert.Equal(t, StatusCompleted, c.State().Status)

	c.Reset()
	assert.Equal(t, State{Status: StatusIdle, Message: "Ready to generate"}, c.State())
}

func TestGenerateValidationFailureSurfacesDetails(t *testing.T) {
	var calls atomic.Int64
	ts, store := backend(t, func(context.Context, generator.Request) (generator.Response, error) {
		calls.Add(1)
		return generator.Response{Raw: []byte(`{"items":[]}`)}, nil
	})

	c := New(ts.URL)
	_, err := c.Generate(context.Background(), request(t, store))

	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusInternalServerError, ae.Status)
	assert.Equal(t, ClassValidation, ae.Class())
	assert.NotEmpty(t, ae.Details)
	assert.Equal(t, generator.ValidationHint, ae.Hint)
	assert.EqualValues(t, 1, calls.Load(), "never retried")

	st := c.State()
	assert.Equal(t, StatusError, st.Status)
	assert.Zero(t, st.Progress)
	assert.Equal(t, ae.Message, st.Err)
}

func TestGenerateErrorClasses(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, generator.Request) (generator.Response, error)
		req  func(Request) Request
		want ErrorClass
	}{
		{
			name: "input",
			req:  func(r Request) Request { r.Casinos = nil; return r },
			want: ClassInput,
		},
		{
			name: "configuration",
			fn: func(context.Context, generator.Request) (generator.Response, error) {
				return generator.Response{}, &generator.ConfigurationError{Setting: "OPENAI_API_KEY"}
			},
			want: ClassConfiguration,
		},
		{
			name: "model",
			fn: func(context.Context, generator.Request) (generator.Response, error) {
				return generator.Response{}, errors.New("upstream reset")
			},
			want: ClassModel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := tt.fn
			if fn == nil {
				fn = generator.NewScoreboardLLM(nil).Complete
			}
			ts, store := backend(t, fn)
			req := request(t, store)
			if tt.req != nil {
				req = tt.req(req)
			}
			_, err := New(ts.URL, WithPath("/api/ai-generate")).Generate(context.Background(), req)
			require.Error(t, err)
			assert.True(t, IsClass(err, tt.want), "got %v", err)
		})
	}
}

func TestGenerateModelMessagePassedThrough(t *testing.T) {
	ts, store := backend(t, func(context.Context, generator.Request) (generator.Response, error) {
		return generator.Response{}, errors.New("upstream reset")
	})

	_, err := New(ts.URL).Generate(context.Background(), request(t, store))
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "upstream reset", ae.Message)
	assert.Equal(t, "mock", ae.Provider)
}

func TestGenerateTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := New(url).Generate(context.Background(), Request{Criteria: "x"})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Zero(t, ae.Status)
	assert.Equal(t, ClassModel, ae.Class())
}

func TestGenerateNonJSONError(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "bad gateway")
	}))
	t.Cleanup(ts.Close)

	_, err := New(ts.URL).Generate(context.Background(), Request{Criteria: "x"})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadGateway, ae.Status)
	assert.Equal(t, ClassModel, ae.Class())
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerateHonoursContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(ts.URL).Generate(ctx, Request{Criteria: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
