package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultMistralBaseURL    = "https://api.mistral.ai/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// ChatCompletionsClient talks to any endpoint that serves the OpenAI chat
// completions API. Mistral and OpenRouter both do.
type ChatCompletionsClient struct {
	label  string
	model  string
	client openai.Client
}

// ChatCompletionsConfig configures a ChatCompletionsClient.
type ChatCompletionsConfig struct {
	Label      string
	APIKey     string
	BaseURL    string
	Model      string
	Headers    map[string]string
	HTTPClient *http.Client
}

// NewChatCompletionsClient builds a client. Retries are disabled so a
// failure surfaces on the first attempt.
func NewChatCompletionsClient(cfg ChatCompletionsConfig) *ChatCompletionsClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &ChatCompletionsClient{
		label:  cfg.Label,
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Generate sends a single user message and returns the first choice.
func (c *ChatCompletionsClient) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion failed: %w", c.label, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s", c.label)
	}
	return resp.Choices[0].Message.Content, nil
}

// Name returns the descriptive name of the client.
func (c *ChatCompletionsClient) Name() string {
	return fmt.Sprintf("%s (%s)", c.label, c.model)
}
