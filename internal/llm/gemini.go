package llm

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient serves google models through the hosted Gemini API.
// The underlying client is created on first use.
type GeminiClient struct {
	apiKey string
	model  string
	log    *zap.Logger

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiClient(apiKey, model string, log *zap.Logger) *GeminiClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &GeminiClient{apiKey: apiKey, model: model, log: log}
}

func (c *GeminiClient) connect(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		if c.apiKey == "" {
			c.initErr = fmt.Errorf("gemini API key must not be empty")
			return
		}
		client, err := genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(c.apiKey))
		if err != nil {
			c.initErr = fmt.Errorf("failed to create gemini client: %w", err)
			return
		}
		c.client = client
	})
	return c.client, c.initErr
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(c.model)
	model.SetMaxOutputTokens(clampInt32(maxTokens))
	model.SetTemperature(float32(temperature))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	return extractText(resp)
}

// clampInt32 bounds n to the int32 range accepted by the Gemini API.
func clampInt32(n int) int32 {
	switch {
	case n > math.MaxInt32:
		return math.MaxInt32
	case n < math.MinInt32:
		return math.MinInt32
	}
	return int32(n)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates returned from gemini")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			return string(text), nil
		}
	}

	return "", fmt.Errorf("unexpected response format from gemini")
}

func (c *GeminiClient) Name() string {
	return fmt.Sprintf("Gemini (%s) [Cloud]", c.model)
}

func (c *GeminiClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
