package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/studygen-api/internal/llm"
	"github.com/noah-isme/studygen-api/internal/models"
	"github.com/noah-isme/studygen-api/pkg/config"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

// ChatFallbackReply is returned whenever the backend cannot produce an answer.
const ChatFallbackReply = "Sorry, I couldn't reach the study assistant just now. Please try your question again in a moment."

const defaultChatContextChars = 15000

// DocumentReader loads stored documents.
type DocumentReader interface {
	Get(ctx context.Context, id string) (*models.Document, error)
}

// ChatService answers questions grounded in one stored document. It keeps no
// conversation state.
type ChatService struct {
	docs        DocumentReader
	resolver    BackendResolver
	factory     llm.Factory
	cfg         config.ChatConfig
	temperature float64
	maxTokens   int
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewChatService wires the chat responder.
func NewChatService(docs DocumentReader, resolver BackendResolver, factory llm.Factory, cfg config.ChatConfig, gen config.GenerationConfig, metrics *MetricsService, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContextChars <= 0 {
		cfg.ContextChars = defaultChatContextChars
	}
	return &ChatService{
		docs:        docs,
		resolver:    resolver,
		factory:     factory,
		cfg:         cfg,
		temperature: gen.Temperature,
		maxTokens:   gen.MaxTokens,
		metrics:     metrics,
		logger:      logger,
	}
}

// Chat loads the document and answers message against it. Only an unknown id
// or an empty message is an error.
func (s *ChatService) Chat(ctx context.Context, documentID, message string) (*models.ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message is required")
	}
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	reply := s.Answer(ctx, doc.OriginalText, message, documentModelType(doc))
	return &reply, nil
}

// Answer makes one model call with up to the configured budget of document
// text. Any backend failure yields ChatFallbackReply.
func (s *ChatService) Answer(ctx context.Context, documentText, message string, modelType llm.ModelType) models.ChatReply {
	backend, err := s.resolver.Resolve(modelType)
	if err != nil {
		return s.fallback(err)
	}
	client, err := s.factory.New(backend)
	if err != nil {
		return s.fallback(err)
	}

	prompt := fmt.Sprintf(chatPromptTemplate, truncateRunes(documentText, s.cfg.ContextChars), message)
	out, err := callModel(ctx, s.metrics, client, backend, "chat", llm.Request{
		System:      chatSystemPrompt,
		User:        prompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}, s.cfg.Timeout)
	if err != nil {
		return s.fallback(err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return s.fallback(appErrors.Clone(appErrors.ErrMalformedModelOutput, "empty chat reply"))
	}
	return models.ChatReply{Reply: out}
}

func (s *ChatService) fallback(err error) models.ChatReply {
	s.metrics.RecordFallback("chat", appErrors.FromError(err).Code)
	s.logger.Warn("chat fell back to canned reply", zap.Error(err))
	return models.ChatReply{Reply: ChatFallbackReply, Fallback: true}
}
