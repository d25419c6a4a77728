package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// generator is satisfied by every backend client in this package.
type generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	Name() string
}

// Settings carries credentials, endpoints and routing for New.
// Zero-valued endpoints fall back to the public defaults.
type Settings struct {
	Routing Routing

	CohereAPIKey  string
	CohereBaseURL string

	MistralAPIKey  string
	MistralBaseURL string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string

	GeminiAPIKey string

	OllamaHost string

	// FormalArticle prefixes every prompt with an instruction to write a
	// formal article with no framing text.
	FormalArticle bool

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a provider-agnostic text generator bound to one provider and model.
type Client struct {
	provider      Provider
	model         string
	backend       Backend
	gen           generator
	formalArticle bool
	log           *zap.Logger
}

// New validates provider, picks the backend from the routing table and
// prepares it. Local backends load their model here; remote backends only
// hold credentials, so a missing key fails on the first Generate.
func New(ctx context.Context, provider, model string, s Settings) (*Client, error) {
	p, err := ParseProvider(provider)
	if err != nil {
		return nil, err
	}

	routing := s.Routing
	if routing == nil {
		routing = NativeRouting()
	}
	b, err := routing.Resolve(p)
	if err != nil {
		return nil, err
	}

	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var gen generator
	switch b {
	case BackendCohere:
		gen = NewCohereClient(s.CohereAPIKey, s.CohereBaseURL, model, s.HTTPClient, log)
	case BackendMistral:
		gen = NewChatCompletionsClient(ChatCompletionsConfig{
			Label:      "Mistral",
			APIKey:     s.MistralAPIKey,
			BaseURL:    orDefault(s.MistralBaseURL, defaultMistralBaseURL),
			Model:      model,
			HTTPClient: s.HTTPClient,
		})
	case BackendOpenRouter:
		gen = NewChatCompletionsClient(ChatCompletionsConfig{
			Label:      "OpenRouter",
			APIKey:     s.OpenRouterAPIKey,
			BaseURL:    orDefault(s.OpenRouterBaseURL, defaultOpenRouterBaseURL),
			Model:      model,
			Headers:    map[string]string{"X-Title": "political-bias-eval"},
			HTTPClient: s.HTTPClient,
		})
	case BackendGemini:
		gen = NewGeminiClient(s.GeminiAPIKey, model, log)
	case BackendLocal:
		local := NewLocalOllamaClient(s.OllamaHost, model, s.HTTPClient, log)
		if err := local.Load(ctx); err != nil {
			return nil, err
		}
		gen = local
	default:
		return nil, fmt.Errorf("%w: unknown backend %q for %s", ErrUnsupportedProvider, b, p)
	}

	log.Info("llm client ready",
		zap.String("provider", string(p)),
		zap.String("backend", string(b)),
		zap.String("model", model))

	return &Client{
		provider:      p,
		model:         model,
		backend:       b,
		gen:           gen,
		formalArticle: s.FormalArticle,
		log:           log,
	}, nil
}

// Generate returns the completion for text. Provider failures are returned
// unchanged apart from added context.
func (c *Client) Generate(ctx context.Context, text string, maxTokens int, temperature float64) (string, error) {
	if c.gen == nil {
		return "", fmt.Errorf("%w: client has no backend", ErrUnsupportedProvider)
	}
	out, err := c.gen.Generate(ctx, buildPrompt(text, c.formalArticle), maxTokens, temperature)
	if err != nil {
		return "", fmt.Errorf("%s/%s: %w", c.provider, c.model, err)
	}
	return out, nil
}

func (c *Client) Name() string {
	if c.gen == nil {
		return "unconfigured"
	}
	return c.gen.Name()
}

func (c *Client) Provider() Provider { return c.provider }
func (c *Client) Model() string      { return c.model }
func (c *Client) Backend() Backend   { return c.backend }

// Close releases backend resources, if any.
func (c *Client) Close() error {
	if closer, ok := c.gen.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
