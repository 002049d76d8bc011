package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

// AzureBackend calls an Azure OpenAI chat deployment through langchaingo.
type AzureBackend struct {
	llm        llms.Model
	deployment string
}

// NewAzureBackend builds the REST client for cfg.
func NewAzureBackend(cfg BackendConfig, httpClient *http.Client) (*AzureBackend, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.Endpoint),
		openai.WithAPIType(openai.APITypeAzure),
		openai.WithAPIVersion(cfg.APIVersion),
		openai.WithModel(cfg.ModelID),
		openai.WithEmbeddingModel(cfg.ModelID),
	}
	if httpClient != nil {
		opts = append(opts, openai.WithHTTPClient(httpClient))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create azure openai client: %w", err)
	}
	return &AzureBackend{llm: model, deployment: cfg.ModelID}, nil
}

// Complete implements Completer.
func (b *AzureBackend) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, req.User))

	callOpts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := b.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", appErrors.WrapAs(err, appErrors.ErrTransport, fmt.Sprintf("azure deployment %s request failed", b.deployment))
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", appErrors.Clone(appErrors.ErrMalformedModelOutput, "azure returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
