// Package llm resolves and calls the chat-completion backends used to generate
// study materials. Two interchangeable backends are supported: a managed Azure
// OpenAI deployment reached over its REST API and the Anthropic SDK.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// ModelType selects a backend.
type ModelType string

const (
	ModelAzure     ModelType = "azure"
	ModelAnthropic ModelType = "anthropic"
)

// ParseModelType normalises a client-supplied backend name. An empty value
// resolves to fallback.
func ParseModelType(raw string, fallback ModelType) (ModelType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return fallback, nil
	case "azure", "openai", "managed":
		return ModelAzure, nil
	case "anthropic", "claude", "sdk":
		return ModelAnthropic, nil
	default:
		return "", fmt.Errorf("unsupported model type %q", raw)
	}
}

// Request is one prompt round trip.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer issues a single blocking completion. Implementations must abort
// the outbound call when ctx ends and must not retry.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
