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
	"github.com/noah-isme/studygen-api/pkg/extract"
)

func testGenerationConfig() config.GenerationConfig {
	return config.GenerationConfig{
		MinTextLength:      100,
		Timeout:            time.Second,
		SummaryTimeout:     time.Second,
		Parallel:           true,
		QuizFailureIsFatal: true,
		Temperature:        0.2,
		MaxTokens:          512,
	}
}

func newTestPipeline(resolver BackendResolver, c llm.Completer, mutate func(*config.GenerationConfig)) *Pipeline {
	cfg := testGenerationConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewPipeline(resolver, factoryFor(c), NewGenerator(cfg, nil), cfg, nil, zap.NewNop())
}

func wellFormedCompleter() *fakeCompleter {
	return &fakeCompleter{respond: func(_ context.Context, req llm.Request) (string, error) {
		return wellFormed(formatOf(req)), nil
	}}
}

func failingFor(kinds ...models.FormatKind) *fakeCompleter {
	set := models.NewFormatSet(kinds...)
	return &fakeCompleter{respond: func(_ context.Context, req llm.Request) (string, error) {
		kind := formatOf(req)
		if set.Has(kind) {
			return "", appErrors.Clone(appErrors.ErrTransport, "backend timed out")
		}
		return wellFormed(kind), nil
	}}
}

func assertPopulated(t *testing.T, result ProcessedResult, formats models.FormatSet) {
	t.Helper()
	for _, kind := range formats {
		switch kind {
		case models.FormatFlashcards:
			assert.NotEmpty(t, result.Flashcards)
		case models.FormatSummary:
			assert.NotEmpty(t, result.Summary)
		case models.FormatCornellNotes:
			require.NotNil(t, result.CornellNotes)
			assert.NotEmpty(t, result.CornellNotes.Cues)
		case models.FormatMultipleChoice:
			assert.NotEmpty(t, result.MultipleChoice)
		}
	}
}

func TestProcessShortTextFallsBackWithoutCalls(t *testing.T) {
	sets := []models.FormatSet{
		models.NewFormatSet(models.FormatFlashcards),
		models.NewFormatSet(models.FormatSummary, models.FormatCornellNotes),
		models.NewFormatSet(models.AllFormats...),
	}
	for _, text := range []string{"", "short", studyText(99)} {
		for _, formats := range sets {
			completer := wellFormedCompleter()
			p := newTestPipeline(resolverStub{}, completer, nil)

			result := p.Process(context.Background(), text, formats, llm.ModelAzure)

			assert.True(t, result.IsMockData)
			assert.Equal(t, ReasonInsufficientContent, result.FallbackReason)
			assert.Equal(t, formats, result.Produced)
			assertPopulated(t, result, formats)
			assert.Zero(t, completer.Calls())
		}
	}
}

func TestProcessPlaceholderTextIsInsufficientAtAnyThreshold(t *testing.T) {
	completer := wellFormedCompleter()
	p := newTestPipeline(resolverStub{}, completer, func(cfg *config.GenerationConfig) { cfg.MinTextLength = 10 })
	formats := models.NewFormatSet(models.AllFormats...)

	result := p.Process(context.Background(), extract.Placeholder, formats, llm.ModelAzure)

	assert.True(t, result.IsMockData)
	assert.Equal(t, ReasonInsufficientContent, result.FallbackReason)
	assertPopulated(t, result, formats)
	assert.Zero(t, completer.Calls())
}

func TestProcessUnconfiguredBackendFallsBackWithoutCalls(t *testing.T) {
	completer := wellFormedCompleter()
	p := newTestPipeline(resolverStub{err: appErrors.ErrBackendUnconfigured}, completer, nil)
	formats := models.NewFormatSet(models.AllFormats...)

	result := p.Process(context.Background(), studyText(5000), formats, llm.ModelAnthropic)

	assert.True(t, result.IsMockData)
	assert.Equal(t, ReasonBackendUnconfigured, result.FallbackReason)
	assertPopulated(t, result, formats)
	assert.Zero(t, completer.Calls())
}

func TestProcessAllFormatsSucceed(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		completer := wellFormedCompleter()
		p := newTestPipeline(resolverStub{}, completer, func(c *config.GenerationConfig) { c.Parallel = parallel })
		formats := models.NewFormatSet(models.AllFormats...)

		result := p.Process(context.Background(), studyText(5000), formats, llm.ModelAzure)

		assert.False(t, result.IsMockData)
		assert.Equal(t, formats, result.Produced)
		assertPopulated(t, result, formats)
		assert.Len(t, result.Flashcards, 6)
		assert.Equal(t, 4, completer.Calls())
	}
}

func TestProcessFormatFailureIsIndependent(t *testing.T) {
	p := newTestPipeline(resolverStub{}, failingFor(models.FormatSummary), nil)
	formats := models.NewFormatSet(models.FormatFlashcards, models.FormatSummary)

	result := p.Process(context.Background(), studyText(5000), formats, llm.ModelAzure)

	assert.False(t, result.IsMockData)
	assert.Len(t, result.Flashcards, 6)
	assert.Empty(t, result.Summary)
	assert.Equal(t, models.NewFormatSet(models.FormatFlashcards), result.Produced)
}

// A failed quiz discards every other format by default. This mirrors how the
// product has always behaved; QuizFailureIsFatal=false makes the quiz as
// independent as the other formats.
func TestProcessQuizFailureFallsBackWholesale(t *testing.T) {
	p := newTestPipeline(resolverStub{}, failingFor(models.FormatMultipleChoice), nil)
	formats := models.NewFormatSet(models.FormatFlashcards, models.FormatMultipleChoice)

	result := p.Process(context.Background(), studyText(5000), formats, llm.ModelAzure)

	assert.True(t, result.IsMockData)
	assert.Equal(t, ReasonQuizFailed, result.FallbackReason)
	assert.Equal(t, mockFlashcards, result.Flashcards)
	assert.Equal(t, mockMultipleChoice, result.MultipleChoice)
}

func TestProcessQuizFailureNonFatal(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		p := newTestPipeline(resolverStub{}, failingFor(models.FormatMultipleChoice), func(c *config.GenerationConfig) {
			c.QuizFailureIsFatal = false
			c.Parallel = parallel
		})
		formats := models.NewFormatSet(models.FormatFlashcards, models.FormatMultipleChoice)

		result := p.Process(context.Background(), studyText(5000), formats, llm.ModelAzure)

		assert.False(t, result.IsMockData)
		assert.Len(t, result.Flashcards, 6)
		assert.Empty(t, result.MultipleChoice)
	}
}

func TestProcessEveryFormatFailedFallsBack(t *testing.T) {
	p := newTestPipeline(resolverStub{}, failingFor(models.FormatFlashcards, models.FormatSummary), nil)
	formats := models.NewFormatSet(models.FormatFlashcards, models.FormatSummary)

	result := p.Process(context.Background(), studyText(5000), formats, llm.ModelAzure)

	assert.True(t, result.IsMockData)
	assert.Equal(t, ReasonAllFormatsFailed, result.FallbackReason)
	assertPopulated(t, result, formats)
}

func TestProcessMalformedOutputIsPerFormat(t *testing.T) {
	completer := &fakeCompleter{respond: func(_ context.Context, req llm.Request) (string, error) {
		if formatOf(req) == models.FormatCornellNotes {
			return "I cannot help with that.", nil
		}
		return wellFormed(formatOf(req)), nil
	}}
	p := newTestPipeline(resolverStub{}, completer, nil)

	result := p.Process(context.Background(), studyText(5000), models.NewFormatSet(models.FormatSummary, models.FormatCornellNotes), llm.ModelAzure)

	assert.False(t, result.IsMockData)
	assert.Nil(t, result.CornellNotes)
	assert.Equal(t, summaryText, result.Summary)
}

func TestProcessFactoryErrorFallsBack(t *testing.T) {
	cfg := testGenerationConfig()
	factory := llm.FactoryFunc(func(llm.BackendConfig) (llm.Completer, error) { return nil, errors.New("dial failed") })
	p := NewPipeline(resolverStub{}, factory, NewGenerator(cfg, nil), cfg, nil, nil)

	result := p.Process(context.Background(), studyText(500), models.NewFormatSet(models.FormatSummary), llm.ModelAzure)

	assert.True(t, result.IsMockData)
	assert.Equal(t, ReasonBackendUnavailable, result.FallbackReason)
}

func TestGeneratorTruncatesToBudgetAndTimesOut(t *testing.T) {
	gen := NewGenerator(config.GenerationConfig{Timeout: 20 * time.Millisecond, SummaryTimeout: 20 * time.Millisecond}, nil)
	backend := llm.BackendConfig{Type: llm.ModelAzure, CharBudget: 50}

	var seenDeadline bool
	completer := &fakeCompleter{respond: func(ctx context.Context, req llm.Request) (string, error) {
		_, seenDeadline = ctx.Deadline()
		<-ctx.Done()
		return "", ctx.Err()
	}}

	text := studyText(500)
	_, err := gen.Generate(context.Background(), models.FormatSummary, text, backend, completer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrTransport))
	assert.True(t, seenDeadline)

	require.Len(t, completer.requests, 1)
	assert.Contains(t, completer.requests[0].User, text[:50])
	assert.NotContains(t, completer.requests[0].User, text[:51])
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "héllo", truncateRunes("héllo", 0))
}

func TestMockResultIsDeterministic(t *testing.T) {
	formats := models.NewFormatSet(models.AllFormats...)
	a := MockResult(formats, "x")
	b := MockResult(formats, "x")
	assert.Equal(t, a, b)
	assert.True(t, a.IsMockData)

	a.Flashcards[0].Question = "mutated"
	assert.NotEqual(t, "mutated", MockResult(formats, "x").Flashcards[0].Question)
}
