package optimize

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dbjwhs/cql-sub000/internal/security"
)

// APIKeyEnvVar is consulted first for backend credentials; provider
// specific variables are the fallback.
const (
	APIKeyEnvVar          = "CQL_API_KEY"
	AnthropicAPIKeyEnvVar = "ANTHROPIC_API_KEY"
	OpenAIAPIKeyEnvVar    = "OPENAI_API_KEY"
)

// Request is one completion request to an LLM backend.
type Request struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Response is a completed LLM request with token accounting.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Backend abstracts the LLM provider used for meta-prompt compilation
// and semantic validation.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Configured() bool
	Name() string
}

// apiKeyFromEnv resolves a backend credential, preferring the shared
// variable.
func apiKeyFromEnv(providerVar string) *security.SecureString {
	if key, ok := security.SecureFromEnv(APIKeyEnvVar); ok {
		return key
	}
	key, _ := security.SecureFromEnv(providerVar)
	return key
}

// AnthropicBackend talks to the Anthropic Messages API.
type AnthropicBackend struct {
	client       *anthropic.Client
	defaultModel string
	configured   bool
}

// NewAnthropicBackend builds a backend from an API key. A nil or
// empty key yields an unconfigured backend that refuses requests.
func NewAnthropicBackend(key *security.SecureString, defaultModel string) *AnthropicBackend {
	if defaultModel == "" {
		defaultModel = string(anthropic.ModelClaude3Dot5SonnetLatest)
	}
	b := &AnthropicBackend{defaultModel: defaultModel}
	if key != nil && !key.Empty() {
		if err := security.ValidateAPIKey(key.Value()); err == nil {
			b.client = anthropic.NewClient(key.Value())
			b.configured = true
		}
	}
	return b
}

// NewAnthropicBackendFromEnv reads the key from the environment.
func NewAnthropicBackendFromEnv(defaultModel string) *AnthropicBackend {
	return NewAnthropicBackend(apiKeyFromEnv(AnthropicAPIKeyEnvVar), defaultModel)
}

func (b *AnthropicBackend) Name() string     { return "anthropic" }
func (b *AnthropicBackend) Configured() bool { return b.configured }

func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	if !b.configured {
		return nil, fmt.Errorf("anthropic backend is not configured")
	}
	model := req.Model
	if model == "" {
		model = b.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	temperature := float32(req.Temperature)

	resp, err := b.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(model),
		Messages:    []anthropic.Message{anthropic.NewUserTextMessage(req.Prompt)},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, wrapAnthropicError(err)
	}
	return &Response{
		Text:         resp.GetFirstContentText(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// OpenAIBackend talks to the OpenAI chat completions API, or any
// compatible endpoint via a custom base URL.
type OpenAIBackend struct {
	client       *openai.Client
	defaultModel string
	configured   bool
}

// NewOpenAIBackend builds a backend from an API key and optional
// base URL override.
func NewOpenAIBackend(key *security.SecureString, baseURL, defaultModel string) *OpenAIBackend {
	if defaultModel == "" {
		defaultModel = openai.GPT4o
	}
	b := &OpenAIBackend{defaultModel: defaultModel}
	if key != nil && !key.Empty() {
		if err := security.ValidateAPIKey(key.Value()); err == nil {
			config := openai.DefaultConfig(key.Value())
			if baseURL != "" {
				config.BaseURL = baseURL
			}
			b.client = openai.NewClientWithConfig(config)
			b.configured = true
		}
	}
	return b
}

// NewOpenAIBackendFromEnv reads the key from the environment.
func NewOpenAIBackendFromEnv(baseURL, defaultModel string) *OpenAIBackend {
	return NewOpenAIBackend(apiKeyFromEnv(OpenAIAPIKeyEnvVar), baseURL, defaultModel)
}

func (b *OpenAIBackend) Name() string     { return "openai" }
func (b *OpenAIBackend) Configured() bool { return b.configured }

func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	if !b.configured {
		return nil, fmt.Errorf("openai backend is not configured")
	}
	model := req.Model
	if model == "" {
		model = b.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &BackendError{
			Category: ErrorServer,
			Err:      fmt.Errorf("openai API returned no choices"),
		}
	}
	return &Response{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
