package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

const defaultOllamaHost = "http://localhost:11434"

// LocalOllamaClient runs generation against a local Ollama server.
// Calls are serialized; a local runtime serves one request at a time.
type LocalOllamaClient struct {
	host       string
	model      string
	httpClient *http.Client
	log        *zap.Logger
	mu         sync.Mutex
}

// NewLocalOllamaClient initializes a new client for a local Ollama instance.
func NewLocalOllamaClient(host, model string, httpClient *http.Client, log *zap.Logger) *LocalOllamaClient {
	if host == "" {
		host = defaultOllamaHost
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalOllamaClient{
		host:       host,
		model:      model,
		httpClient: httpClient,
		log:        log,
	}
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

type ollamaModelRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// Load makes the model available locally, pulling it when the server does not have it.
func (c *LocalOllamaClient) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.hasModel(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrModelLoad, c.model, err)
	}
	if ok {
		c.log.Debug("local model present", zap.String("model", c.model))
		return nil
	}
	if err := c.PullModel(ctx, c.model); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrModelLoad, c.model, err)
	}
	return nil
}

func (c *LocalOllamaClient) hasModel(ctx context.Context) (bool, error) {
	resp, err := c.post(ctx, "/api/show", ollamaModelRequest{Model: c.model})
	if err != nil {
		return false, fmt.Errorf("ollama show request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("ollama show returned error status %d: %s", resp.StatusCode, string(body))
	}
}

// PullModel pulls the specified model from the Ollama library.
func (c *LocalOllamaClient) PullModel(ctx context.Context, model string) error {
	c.log.Info("pulling local model", zap.String("model", model))

	resp, err := c.post(ctx, "/api/pull", ollamaModelRequest{Model: model, Stream: false})
	if err != nil {
		return fmt.Errorf("ollama pull request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama pull returned error status %d: %s", resp.StatusCode, string(body))
	}

	c.log.Info("local model pulled", zap.String("model", model))
	return nil
}

// Generate sends a prompt to the local Ollama instance and returns the cleaned completion.
func (c *LocalOllamaClient) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.post(ctx, "/api/generate", ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			NumPredict:  maxTokens,
			Temperature: temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned error status %d: %s", resp.StatusCode, string(body))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}

	return cleanLocalOutput(c.model, out.Response), nil
}

func (c *LocalOllamaClient) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// Name returns the descriptive name of the client.
func (c *LocalOllamaClient) Name() string {
	return fmt.Sprintf("Ollama (%s) [Local]", c.model)
}
