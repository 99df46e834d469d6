package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements LLMClient with chat completions and strict structured
// outputs. The SDK's own retries are disabled.
type OpenAILLM struct {
	Model    string
	Settings LLMSettings
	Opts     []option.RequestOption
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAILLM{Model: cfg.Model, Settings: *cfg, Opts: opts}, nil
}

func (o *OpenAILLM) Provider() string {
	if o.Settings.Provider != "" {
		return o.Settings.Provider
	}
	return "openai"
}

func (o *OpenAILLM) Complete(ctx context.Context, req Request) (Response, error) {
	key, err := o.Settings.ResolveAPIKey()
	if err != nil {
		return Response{}, err
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(key)}, o.Opts...)...)

	name := req.SchemaName
	if name == "" {
		name = "output"
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        name,
					Description: openai.String("Top casinos by ranking criteria snapshot"),
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, o.classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, &ModelInvocationError{Kind: KindEmptyResponse, Provider: o.Provider(), Err: errors.New("openai: empty choices")}
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return Response{}, &ModelInvocationError{Kind: KindRefusal, Provider: o.Provider(), Err: fmt.Errorf("openai: model refused: %s", choice.Message.Refusal)}
	}
	if choice.FinishReason == "length" {
		return Response{}, &ModelInvocationError{Kind: KindSchemaDecode, Provider: o.Provider(), Err: errors.New("openai: response truncated before the JSON document was complete")}
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return Response{}, &ModelInvocationError{Kind: KindEmptyResponse, Provider: o.Provider(), Err: errors.New("openai: empty content")}
	}
	return Response{
		Raw:         []byte(content),
		TotalTokens: resp.Usage.TotalTokens,
		Model:       resp.Model,
	}, nil
}

func (o *OpenAILLM) classify(ctx context.Context, err error) error {
	if kind, ok := classifyContext(ctx.Err()); ok {
		return &ModelInvocationError{Kind: kind, Provider: o.Provider(), Err: err}
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ModelInvocationError{
			Kind:       kindForStatus(apiErr.StatusCode),
			Provider:   o.Provider(),
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}
	if kind, ok := classifyContext(err); ok {
		return &ModelInvocationError{Kind: kind, Provider: o.Provider(), Err: err}
	}
	return &ModelInvocationError{Kind: KindTransport, Provider: o.Provider(), Err: err}
}
