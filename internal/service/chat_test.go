package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/studygen-api/internal/llm"
	"github.com/noah-isme/studygen-api/internal/models"
	"github.com/noah-isme/studygen-api/pkg/config"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

func newTestChat(resolver BackendResolver, c llm.Completer) *ChatService {
	docs := newDocsStub(&models.Document{ID: "doc-1", OriginalText: studyText(20000), ModelType: "anthropic"})
	return NewChatService(docs, resolver, factoryFor(c), config.ChatConfig{ContextChars: 15000, Timeout: time.Second}, testGenerationConfig(), nil, zap.NewNop())
}

func TestChatAnswersFromDocument(t *testing.T) {
	completer := &fakeCompleter{respond: func(context.Context, llm.Request) (string, error) {
		return "  It is about photosynthesis.  ", nil
	}}
	svc := newTestChat(resolverStub{}, completer)

	reply, err := svc.Chat(context.Background(), "doc-1", "What is this about?")
	require.NoError(t, err)
	assert.Equal(t, "It is about photosynthesis.", reply.Reply)
	assert.False(t, reply.Fallback)

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	assert.Equal(t, chatSystemPrompt, req.System)
	assert.Contains(t, req.User, "What is this about?")
	assert.Contains(t, req.User, studyText(15000))
	assert.NotContains(t, req.User, studyText(15001))
}

func TestChatEmbedsMessageVerbatim(t *testing.T) {
	completer := &fakeCompleter{respond: func(context.Context, llm.Request) (string, error) {
		return "Line two restates it.", nil
	}}
	svc := newTestChat(resolverStub{}, completer)

	message := "  Explain this snippet:\n    x := 1\n    y := x + 1\n"
	_, err := svc.Chat(context.Background(), "doc-1", message)
	require.NoError(t, err)

	require.Len(t, completer.requests, 1)
	assert.Contains(t, completer.requests[0].User, message)

	_, err = svc.Chat(context.Background(), "doc-1", " \n\t ")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 1, completer.Calls())
}

func TestChatTransportErrorReturnsFallbackReply(t *testing.T) {
	completer := &fakeCompleter{respond: func(context.Context, llm.Request) (string, error) {
		return "", appErrors.Clone(appErrors.ErrTransport, "connection reset")
	}}
	svc := newTestChat(resolverStub{}, completer)

	reply, err := svc.Chat(context.Background(), "doc-1", "What is this about?")
	require.NoError(t, err)
	assert.Equal(t, ChatFallbackReply, reply.Reply)
	assert.True(t, reply.Fallback)
}

func TestChatUnconfiguredBackendReturnsFallbackWithoutCalls(t *testing.T) {
	completer := &fakeCompleter{respond: func(context.Context, llm.Request) (string, error) { return "unused", nil }}
	svc := newTestChat(resolverStub{err: appErrors.ErrBackendUnconfigured}, completer)

	reply, err := svc.Chat(context.Background(), "doc-1", "Hello?")
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
	assert.Zero(t, completer.Calls())
}

func TestChatStructuralErrors(t *testing.T) {
	svc := newTestChat(resolverStub{}, &fakeCompleter{respond: func(context.Context, llm.Request) (string, error) { return "x", nil }})

	_, err := svc.Chat(context.Background(), "missing", "Hello?")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Chat(context.Background(), "doc-1", "   ")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
