package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiLLM implements LLMClient with responseJsonSchema constrained decoding.
type GeminiLLM struct {
	Model    string
	Settings LLMSettings
}

func NewGeminiLLMFromConfig(cfg *LLMSettings) (*GeminiLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	return &GeminiLLM{Model: cfg.Model, Settings: *cfg}, nil
}

func (g *GeminiLLM) Provider() string { return "gemini" }

func (g *GeminiLLM) Complete(ctx context.Context, req Request) (Response, error) {
	key, err := g.Settings.ResolveAPIKey()
	if err != nil {
		return Response{}, err
	}
	cc := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
	if g.Settings.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.Settings.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return Response{}, &ModelInvocationError{Kind: KindTransport, Provider: g.Provider(), Err: err}
	}

	temp := float32(req.Temperature)
	resp, err := cli.Models.GenerateContent(ctx, g.Model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction:  &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
			Temperature:        &temp,
			ResponseMIMEType:   "application/json",
			ResponseJsonSchema: req.Schema,
		},
	)
	if err != nil {
		return Response{}, g.classify(ctx, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return Response{}, &ModelInvocationError{Kind: KindRefusal, Provider: g.Provider(),
				Err: fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)}
		}
		return Response{}, &ModelInvocationError{Kind: KindEmptyResponse, Provider: g.Provider(), Err: errors.New("gemini: empty candidates")}
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		return Response{}, &ModelInvocationError{Kind: KindSchemaDecode, Provider: g.Provider(), Err: errors.New("gemini: response truncated before the JSON document was complete")}
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Response{}, &ModelInvocationError{Kind: KindEmptyResponse, Provider: g.Provider(), Err: errors.New("gemini: empty content")}
	}

	out := Response{Raw: []byte(text), Model: g.Model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.TotalTokens = int64(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

func (g *GeminiLLM) classify(ctx context.Context, err error) error {
	if kind, ok := classifyContext(ctx.Err()); ok {
		return &ModelInvocationError{Kind: kind, Provider: g.Provider(), Err: err}
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ModelInvocationError{Kind: kindForStatus(apiErr.Code), Provider: g.Provider(), StatusCode: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &ModelInvocationError{Kind: kindForStatus(apiErrPtr.Code), Provider: g.Provider(), StatusCode: apiErrPtr.Code, Err: err}
	}
	return &ModelInvocationError{Kind: KindTransport, Provider: g.Provider(), Err: err}
}
