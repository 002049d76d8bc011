package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/noah-isme/studygen-api/internal/llm"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

// BackendResolver maps a model type to backend configuration without network
// access.
type BackendResolver interface {
	Resolve(modelType llm.ModelType) (llm.BackendConfig, error)
}

// callModel issues one bounded completion and records its outcome. Errors are
// always reported as ErrTransport or ErrMalformedModelOutput.
func callModel(ctx context.Context, metrics *MetricsService, client llm.Completer, backend llm.BackendConfig, operation string, req llm.Request, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := client.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, appErrors.ErrMalformedModelOutput) {
			metrics.ObserveModelCall(string(backend.Type), operation, OutcomeMalformed, elapsed)
			return "", err
		}
		metrics.ObserveModelCall(string(backend.Type), operation, OutcomeTransport, elapsed)
		if errors.Is(err, appErrors.ErrTransport) {
			return "", err
		}
		return "", appErrors.WrapAs(err, appErrors.ErrTransport, "")
	}
	metrics.ObserveModelCall(string(backend.Type), operation, OutcomeSuccess, elapsed)
	return out, nil
}

// truncateRunes cuts s to at most n characters. n <= 0 disables truncation.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
