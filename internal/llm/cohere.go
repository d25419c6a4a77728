package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"go.uber.org/zap"
)

const defaultCohereBaseURL = "https://api.cohere.com"

// CohereClient calls the Cohere v2 chat endpoint.
type CohereClient struct {
	model  string
	client *cohereclient.Client
	log    *zap.Logger
}

// NewCohereClient builds a client. A missing key is only reported by the first call.
func NewCohereClient(apiKey, baseURL, model string, httpClient *http.Client, log *zap.Logger) *CohereClient {
	if baseURL == "" {
		baseURL = defaultCohereBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CohereClient{
		model: model,
		client: cohereclient.NewClient(
			cohereclient.WithToken(apiKey),
			cohereclient.WithBaseURL(strings.TrimRight(baseURL, "/")),
			cohereclient.WithHTTPClient(httpClient),
		),
		log: log,
	}
}

// Generate sends a single user turn and returns the first text block of the reply.
func (c *CohereClient) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	resp, err := c.client.V2.Chat(ctx, &cohere.V2ChatRequest{
		Model: c.model,
		Messages: cohere.ChatMessages{
			{
				Role: "user",
				User: &cohere.UserMessage{
					Content: &cohere.UserMessageContent{String: prompt},
				},
			},
		},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("cohere chat failed: %w", err)
	}
	if resp == nil || resp.Message == nil {
		return "", fmt.Errorf("no message returned from cohere")
	}

	for _, item := range resp.Message.Content {
		if item != nil && item.Text != nil {
			c.log.Debug("cohere response received",
				zap.String("id", resp.Id),
				zap.String("finish_reason", string(resp.FinishReason)))
			return item.Text.Text, nil
		}
	}
	return "", fmt.Errorf("no text content returned from cohere")
}

// Name returns the descriptive name of the client.
func (c *CohereClient) Name() string {
	return fmt.Sprintf("Cohere (%s)", c.model)
}
