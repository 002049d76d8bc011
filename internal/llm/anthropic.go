package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

const defaultAnthropicMaxTokens = 2048

// AnthropicBackend calls the Messages API through the official SDK.
type AnthropicBackend struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicBackend builds an SDK client for cfg. Endpoint, when set,
// overrides the public API base URL.
func NewAnthropicBackend(cfg BackendConfig, httpClient *http.Client) *AnthropicBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicBackend{client: &client, model: cfg.ModelID}
}

// Complete implements Completer.
func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   int64(maxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.User))},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", appErrors.WrapAs(err, appErrors.ErrTransport, fmt.Sprintf("anthropic model %s request failed", b.model))
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", appErrors.Clone(appErrors.ErrMalformedModelOutput, "anthropic returned no text")
	}
	return text, nil
}
