package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/studygen-api/internal/llm"
	"github.com/noah-isme/studygen-api/internal/models"
	"github.com/noah-isme/studygen-api/pkg/config"
)

// FormatResult carries the output of one format generation. Only the field
// matching Kind is populated.
type FormatResult struct {
	Kind           models.FormatKind
	Flashcards     models.Flashcards
	Summary        string
	CornellNotes   *models.CornellNotes
	MultipleChoice models.MultipleChoiceSet
}

// Generator produces a single study format from document text.
type Generator struct {
	temperature    float64
	maxTokens      int
	timeout        time.Duration
	summaryTimeout time.Duration
	metrics        *MetricsService
}

// NewGenerator constructs a Generator from generation settings.
func NewGenerator(cfg config.GenerationConfig, metrics *MetricsService) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	summaryTimeout := cfg.SummaryTimeout
	if summaryTimeout <= 0 {
		summaryTimeout = timeout
	}
	return &Generator{
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		timeout:        timeout,
		summaryTimeout: summaryTimeout,
		metrics:        metrics,
	}
}

// Generate truncates text to the backend budget, prompts once and parses the
// reply. It never retries.
func (g *Generator) Generate(ctx context.Context, kind models.FormatKind, text string, backend llm.BackendConfig, client llm.Completer) (FormatResult, error) {
	prompt, ok := formatPrompts[kind]
	if !ok {
		return FormatResult{}, fmt.Errorf("unknown format %q", kind)
	}
	user, err := buildFormatPrompt(kind, truncateRunes(text, backend.CharBudget))
	if err != nil {
		return FormatResult{}, err
	}

	timeout := g.summaryTimeout
	if prompt.heavy {
		timeout = g.timeout
	}

	raw, err := callModel(ctx, g.metrics, client, backend, string(kind), llm.Request{
		System:      generatorSystemPrompt,
		User:        user,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}, timeout)
	if err != nil {
		return FormatResult{}, err
	}

	return parseFormat(kind, raw)
}

func parseFormat(kind models.FormatKind, raw string) (FormatResult, error) {
	result := FormatResult{Kind: kind}
	var err error
	switch kind {
	case models.FormatFlashcards:
		result.Flashcards, err = parseFlashcards(raw)
	case models.FormatSummary:
		result.Summary, err = parseSummary(raw)
	case models.FormatCornellNotes:
		result.CornellNotes, err = parseCornellNotes(raw)
	case models.FormatMultipleChoice:
		result.MultipleChoice, err = parseMultipleChoice(raw)
	default:
		err = fmt.Errorf("unknown format %q", kind)
	}
	if err != nil {
		return FormatResult{}, err
	}
	return result, nil
}
