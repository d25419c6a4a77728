package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedProvider is returned for a provider tag outside the known set.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrModelLoad is returned when a local model cannot be made available.
	ErrModelLoad = errors.New("model load failed")
)

// Provider is the logical LLM provider named on the command line.
type Provider string

const (
	ProviderCohere     Provider = "cohere"
	ProviderMistral    Provider = "mistral"
	ProviderGoogle     Provider = "google"
	ProviderQwen       Provider = "qwen"
	ProviderOpenRouter Provider = "openrouter"
)

// Providers lists every recognised provider.
func Providers() []Provider {
	return []Provider{ProviderCohere, ProviderMistral, ProviderGoogle, ProviderQwen, ProviderOpenRouter}
}

// ParseProvider maps a provider tag to a Provider. Matching is exact.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
}
