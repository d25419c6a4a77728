package llm

import (
	"fmt"
	"strings"
)

// Backend is the transport target a provider is routed to.
type Backend string

const (
	BackendCohere     Backend = "cohere"
	BackendMistral    Backend = "mistral"
	BackendOpenRouter Backend = "openrouter"
	BackendGemini     Backend = "gemini"
	BackendLocal      Backend = "local"
)

// ParseBackend maps a backend name to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendCohere, BackendMistral, BackendOpenRouter, BackendGemini, BackendLocal:
		return b, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

// Routing maps each provider to the backend that serves it.
type Routing map[Provider]Backend

// NativeRouting sends hosted providers to their own endpoints and runs
// google/qwen models locally.
func NativeRouting() Routing {
	return Routing{
		ProviderCohere:     BackendCohere,
		ProviderMistral:    BackendMistral,
		ProviderGoogle:     BackendLocal,
		ProviderQwen:       BackendLocal,
		ProviderOpenRouter: BackendOpenRouter,
	}
}

// AggregatorRouting sends google/qwen through the OpenRouter endpoint and
// keeps cohere/mistral native.
func AggregatorRouting() Routing {
	return NativeRouting().
		With(ProviderGoogle, BackendOpenRouter).
		With(ProviderQwen, BackendOpenRouter)
}

// RoutingByName returns the routing table for "native" or "openrouter".
func RoutingByName(name string) (Routing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "native":
		return NativeRouting(), nil
	case "openrouter":
		return AggregatorRouting(), nil
	default:
		return nil, fmt.Errorf("unknown routing %q", name)
	}
}

// With returns a copy of r with provider p routed to b.
func (r Routing) With(p Provider, b Backend) Routing {
	out := make(Routing, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[p] = b
	return out
}

// Resolve returns the backend for p.
func (r Routing) Resolve(p Provider) (Backend, error) {
	b, ok := r[p]
	if !ok {
		return "", fmt.Errorf("%w: no backend routed for %q", ErrUnsupportedProvider, p)
	}
	return b, nil
}
