package llm

import (
	"fmt"
	"net/http"
)

// Factory turns resolved configuration into a Completer.
type Factory interface {
	New(cfg BackendConfig) (Completer, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(cfg BackendConfig) (Completer, error)

// New implements Factory.
func (f FactoryFunc) New(cfg BackendConfig) (Completer, error) { return f(cfg) }

// ClientFactory builds the real SDK/REST backends. HTTPClient is optional;
// per-call deadlines come from the request context.
type ClientFactory struct {
	HTTPClient *http.Client
}

// New implements Factory.
func (f ClientFactory) New(cfg BackendConfig) (Completer, error) {
	switch cfg.Type {
	case ModelAzure:
		return NewAzureBackend(cfg, f.HTTPClient)
	case ModelAnthropic:
		return NewAnthropicBackend(cfg, f.HTTPClient), nil
	default:
		return nil, fmt.Errorf("no backend for model type %q", cfg.Type)
	}
}
