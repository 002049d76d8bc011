package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/studygen-api/internal/llm"
	"github.com/noah-isme/studygen-api/internal/models"
	"github.com/noah-isme/studygen-api/pkg/config"
	"github.com/noah-isme/studygen-api/pkg/extract"
)

// ProcessedResult is the aggregate of every format produced for a document.
// Formats that were requested but failed are left at their zero value.
type ProcessedResult struct {
	Flashcards     models.Flashcards
	Summary        string
	CornellNotes   *models.CornellNotes
	MultipleChoice models.MultipleChoiceSet
	Produced       models.FormatSet
	IsMockData     bool
	FallbackReason string
}

var errQuizFailed = errors.New("multiple choice generation failed")

// Pipeline runs the generator once per requested format and degrades to mock
// content when preconditions fail or the backend flow breaks.
type Pipeline struct {
	resolver  BackendResolver
	factory   llm.Factory
	generator *Generator
	cfg       config.GenerationConfig
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewPipeline wires the orchestrator.
func NewPipeline(resolver BackendResolver, factory llm.Factory, generator *Generator, cfg config.GenerationConfig, metrics *MetricsService, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 100
	}
	return &Pipeline{resolver: resolver, factory: factory, generator: generator, cfg: cfg, metrics: metrics, logger: logger}
}

// Process generates every format in formats from text using modelType.
func (p *Pipeline) Process(ctx context.Context, text string, formats models.FormatSet, modelType llm.ModelType) ProcessedResult {
	backend, err := p.resolver.Resolve(modelType)
	if err != nil {
		return p.fallback(formats, ReasonBackendUnconfigured, zap.String("model_type", string(modelType)), zap.Error(err))
	}

	if text == extract.Placeholder {
		return p.fallback(formats, ReasonInsufficientContent, zap.Bool("extraction_failed", true))
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < p.cfg.MinTextLength {
		return p.fallback(formats, ReasonInsufficientContent, zap.Int("text_length", n), zap.Int("min_length", p.cfg.MinTextLength))
	}

	client, err := p.factory.New(backend)
	if err != nil {
		return p.fallback(formats, ReasonBackendUnavailable, zap.Error(err))
	}

	slots := make([]*FormatResult, len(formats))
	if err := p.generateAll(ctx, text, formats, backend, client, slots); err != nil {
		return p.fallback(formats, ReasonQuizFailed, zap.Error(err))
	}

	result := ProcessedResult{}
	for _, slot := range slots {
		if slot == nil {
			continue
		}
		switch slot.Kind {
		case models.FormatFlashcards:
			result.Flashcards = slot.Flashcards
		case models.FormatSummary:
			result.Summary = slot.Summary
		case models.FormatCornellNotes:
			result.CornellNotes = slot.CornellNotes
		case models.FormatMultipleChoice:
			result.MultipleChoice = slot.MultipleChoice
		}
		result.Produced = append(result.Produced, slot.Kind)
	}
	if len(formats) > 0 && len(result.Produced) == 0 {
		return p.fallback(formats, ReasonAllFormatsFailed)
	}
	return result
}

// generateAll fills slots in format order. It returns a non-nil error only
// for a fatal quiz failure.
func (p *Pipeline) generateAll(ctx context.Context, text string, formats models.FormatSet, backend llm.BackendConfig, client llm.Completer, slots []*FormatResult) error {
	run := func(ctx context.Context, i int, kind models.FormatKind) error {
		res, err := p.generator.Generate(ctx, kind, text, backend, client)
		if err != nil {
			if kind == models.FormatMultipleChoice && p.cfg.QuizFailureIsFatal {
				return errors.Join(errQuizFailed, err)
			}
			p.logger.Warn("format generation failed",
				zap.String("format", string(kind)),
				zap.String("backend", string(backend.Type)),
				zap.Error(err))
			return nil
		}
		slots[i] = &res
		return nil
	}

	if !p.cfg.Parallel {
		for i, kind := range formats {
			if err := run(ctx, i, kind); err != nil {
				return err
			}
		}
		return nil
	}

	// Each goroutine owns slots[i]; a fatal quiz error cancels the rest.
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range formats {
		i, kind := i, kind
		g.Go(func() error { return run(gctx, i, kind) })
	}
	return g.Wait()
}

func (p *Pipeline) fallback(formats models.FormatSet, reason string, fields ...zap.Field) ProcessedResult {
	p.metrics.RecordFallback("process", reason)
	p.logger.Warn("serving mock study materials", append([]zap.Field{zap.String("reason", reason)}, fields...)...)
	return MockResult(formats, reason)
}
