package llm

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/noah-isme/studygen-api/pkg/config"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

// DefaultAzureDeployment is used when the configured endpoint carries no
// deployments/<name> segment.
const DefaultAzureDeployment = "gpt-4o"

const defaultCharBudget = 12000

// BackendConfig is everything needed to reach one backend.
type BackendConfig struct {
	Type       ModelType
	Endpoint   string
	APIKey     string
	APIVersion string
	ModelID    string
	CharBudget int
}

// Selector resolves a ModelType to backend configuration. It never performs
// network calls.
type Selector struct {
	azure     config.AzureConfig
	anthropic config.AnthropicConfig
}

// NewSelector builds a selector over explicit credentials.
func NewSelector(azure config.AzureConfig, anthropic config.AnthropicConfig) *Selector {
	return &Selector{azure: azure, anthropic: anthropic}
}

// Resolve returns the backend for modelType, or ErrBackendUnconfigured when
// its credentials are absent.
func (s *Selector) Resolve(modelType ModelType) (BackendConfig, error) {
	switch modelType {
	case ModelAzure:
		return s.resolveAzure()
	case ModelAnthropic:
		return s.resolveAnthropic()
	default:
		return BackendConfig{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported model type %q", modelType))
	}
}

func (s *Selector) resolveAzure() (BackendConfig, error) {
	key := strings.TrimSpace(s.azure.APIKey)
	endpoint := strings.TrimSpace(s.azure.Endpoint)
	if key == "" || endpoint == "" {
		return BackendConfig{}, appErrors.Clone(appErrors.ErrBackendUnconfigured, "azure openai key or endpoint missing")
	}
	base, deployment, version, err := ParseAzureEndpoint(endpoint)
	if err != nil {
		return BackendConfig{}, appErrors.WrapAs(err, appErrors.ErrBackendUnconfigured, "azure openai endpoint is invalid")
	}
	if version == "" {
		version = s.azure.APIVersion
	}
	return BackendConfig{
		Type:       ModelAzure,
		Endpoint:   base,
		APIKey:     key,
		APIVersion: version,
		ModelID:    deployment,
		CharBudget: budgetOrDefault(s.azure.CharBudget),
	}, nil
}

func (s *Selector) resolveAnthropic() (BackendConfig, error) {
	key := strings.TrimSpace(s.anthropic.APIKey)
	if key == "" {
		return BackendConfig{}, appErrors.Clone(appErrors.ErrBackendUnconfigured, "anthropic api key missing")
	}
	return BackendConfig{
		Type:       ModelAnthropic,
		APIKey:     key,
		ModelID:    s.anthropic.Model,
		CharBudget: budgetOrDefault(s.anthropic.CharBudget),
	}, nil
}

// ParseAzureEndpoint splits a deployment URL such as
// https://res.openai.azure.com/openai/deployments/gpt-4o/chat/completions?api-version=2024-08-01-preview
// into its resource base, deployment name and api version.
func ParseAzureEndpoint(raw string) (base, deployment, apiVersion string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", "", fmt.Errorf("endpoint %q is not an absolute url", raw)
	}
	base = u.Scheme + "://" + u.Host

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "deployments" && i+1 < len(segments) && segments[i+1] != "" {
			deployment = segments[i+1]
			break
		}
	}
	if deployment == "" {
		deployment = DefaultAzureDeployment
	}
	return base, deployment, u.Query().Get("api-version"), nil
}

func budgetOrDefault(n int) int {
	if n <= 0 {
		return defaultCharBudget
	}
	return n
}
