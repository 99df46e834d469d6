// Package server exposes the generation pipeline over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"top_criteria_generator/catalog"
	"top_criteria_generator/generator"
	"top_criteria_generator/publisher"
	"top_criteria_generator/schema"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 4 << 20

// Error codes carried in the "code" field of failure bodies.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeConfiguration     = "configuration_error"
	CodeModelInvocation   = "model_invocation_error"
	CodeContentValidation = "content_validation_error"
	CodeInternal          = "internal_error"
)

// Messages returned for client-side failures.
const (
	MsgInvalidBody       = "invalid request body"
	MsgMissingFields     = "missing required fields: pageContent, casinos, or criteria"
	MsgValidationFailed  = "generated content failed validation"
	MsgPreviewValidation = "snapshot failed validation"
)

type Server struct {
	agent    *generator.Agent
	settings generator.LLMSettings
	catalog  catalog.Provider
	log      *zap.Logger
	router   chi.Router
}

// Options configures New.
type Options struct {
	// Settings describe the agent's capability; used for the credential
	// pre-check and /healthz.
	Settings generator.LLMSettings
	// Catalog hydrates author, language and geo. May be nil.
	Catalog catalog.Provider
	Logger  *zap.Logger
}

func New(agent *generator.Agent, opts Options) (*Server, error) {
	if agent == nil {
		return nil, errors.New("generator agent required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		agent:    agent,
		settings: opts.Settings,
		catalog:  opts.Catalog,
		log:      opts.Logger,
	}
	s.router = s.routes()
	return s, nil
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler { return s.router }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/generate", s.handleGenerate)
	r.Post("/api/ai-generate", s.handleGenerate)
	r.Post("/preview", s.handlePreview)
	return r
}

// --- Handlers ---

type generateRequest struct {
	PageContent *catalog.PageContent `json:"pageContent"`
	Casinos     []catalog.Casino     `json:"casinos"`
	Criteria    string               `json:"criteria"`
}

func (req generateRequest) missing() []string {
	var out []string
	if req.PageContent == nil {
		out = append(out, "pageContent")
	}
	if len(req.Casinos) == 0 {
		out = append(out, "casinos")
	}
	if strings.TrimSpace(req.Criteria) == "" {
		out = append(out, "criteria")
	}
	return out
}

type generateResponse struct {
	Success    bool             `json:"success"`
	Data       *schema.Snapshot `json:"data"`
	TokensUsed int64            `json:"tokensUsed,omitempty"`
	// Duration is in milliseconds.
	Duration int64    `json:"duration"`
	Warnings []string `json:"warnings,omitempty"`
	RunID    string   `json:"runId,omitempty"`
	Model    string   `json:"model,omitempty"`
}

type errorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
	Hint    string   `json:"hint,omitempty"`

	// set for model invocation failures
	Provider string `json:"provider,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil {
		log.Debug("rejecting malformed body", zap.Error(err))
		respondError(w, http.StatusBadRequest, errorResponse{Error: MsgInvalidBody, Code: CodeInvalidRequest, Details: []string{err.Error()}})
		return
	}
	if missing := req.missing(); len(missing) > 0 {
		respondError(w, http.StatusBadRequest, errorResponse{Error: MsgMissingFields, Code: CodeInvalidRequest, Details: missing})
		return
	}
	if _, err := s.settings.ResolveAPIKey(); err != nil {
		log.Error("generation capability not configured", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: CodeConfiguration})
		return
	}

	gc := generator.ResolveContext(s.catalog, *req.PageContent, req.Casinos, req.Criteria)
	log.Info("generation requested",
		zap.String("page", gc.Page.Slug),
		zap.Int("casinos", len(gc.Casinos)),
		zap.String("criteria", gc.Criteria),
		zap.String("author", gc.Author.Name),
		zap.String("geo", gc.Geo.CountryCode),
	)

	start := time.Now()
	out, err := s.agent.Generate(r.Context(), gc)
	if err != nil {
		status, body := classify(err)
		respondError(w, status, body)
		return
	}
	respondJSON(w, http.StatusOK, generateResponse{
		Success:    true,
		Data:       out.Snapshot,
		TokensUsed: out.TokensUsed,
		Duration:   time.Since(start).Milliseconds(),
		Warnings:   out.Warnings,
		RunID:      out.RunID,
		Model:      out.Model,
	})
}

// classify maps a pipeline error to a status and body. Every pipeline failure
// is a 500.
func classify(err error) (int, errorResponse) {
	var (
		cfg *generator.ConfigurationError
		mie *generator.ModelInvocationError
		cve *generator.ContentValidationError
	)
	switch {
	case errors.As(err, &cfg):
		return http.StatusInternalServerError, errorResponse{Error: cfg.Error(), Code: CodeConfiguration}
	case errors.As(err, &mie):
		return http.StatusInternalServerError, errorResponse{
			Error: mie.Message(), Code: CodeModelInvocation, Provider: mie.Provider, Kind: string(mie.Kind),
		}
	case errors.As(err, &cve):
		return http.StatusInternalServerError, errorResponse{Error: MsgValidationFailed, Code: CodeContentValidation, Details: cve.Details(), Hint: cve.Hint}
	default:
		return http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: CodeInternal}
	}
}

// handlePreview renders a snapshot posted by the caller, typically one returned
// earlier by /generate.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, errorResponse{Error: MsgInvalidBody, Code: CodeInvalidRequest})
		return
	}
	snap, err := s.agent.Registry().Validate(body)
	if err != nil {
		var ve schema.ValidationErrors
		if errors.As(err, &ve) {
			respondError(w, http.StatusUnprocessableEntity, errorResponse{Error: MsgPreviewValidation, Code: CodeContentValidation, Details: ve.Messages()})
			return
		}
		respondError(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: CodeInternal})
		return
	}

	var brands publisher.Brands
	if s.catalog != nil {
		brands = publisher.BrandsOf(s.catalog.Casinos())
	}
	html, err := publisher.RenderHTML(snap, brands, publisher.RenderOptions{Embed: r.URL.Query().Get("embed") == "1"})
	if err != nil {
		respondError(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: CodeInternal})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, html)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.agent.Provider(),
		"model":    s.settings.Model,
	})
}

// --- Helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, body errorResponse) {
	body.Success = false
	respondJSON(w, status, body)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}
