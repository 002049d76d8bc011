package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/studygen-api/internal/llm"
	"github.com/noah-isme/studygen-api/internal/models"
	"github.com/noah-isme/studygen-api/pkg/config"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

const (
	lowEffortRating       = 1.5
	fallbackLongRating    = 2.5
	fallbackDefaultRating = 2.0
	longAnswerChars       = 100
	synthesizedRatingCap  = 3.0
	synthesizedCharsPerPt = 40.0
	maxRating             = 5.0
)

// FallbackFeynmanQuestions are asked when question generation fails.
var FallbackFeynmanQuestions = []string{
	"What is the main idea of this material, explained in your own words?",
	"Which key terms does the material introduce, and what does each one mean in plain language?",
	"How would you explain the most important concept here to someone who has never studied it?",
	"Can you give a real-world example that illustrates one of the ideas in the material?",
	"Which part of the material was hardest to understand, and how would you explain it simply now?",
}

var dismissiveAnswers = map[string]struct{}{
	"i don't know": {},
	"i don’t know": {},
	"i dont know":  {},
	"idk":          {},
}

// FeynmanSessionStore persists one session per document.
type FeynmanSessionStore interface {
	Get(ctx context.Context, documentID string) (*models.FeynmanSession, error)
	Save(ctx context.Context, session *models.FeynmanSession) error
}

// FeynmanService drives the question, answer and evaluation flow.
type FeynmanService struct {
	docs        DocumentReader
	sessions    FeynmanSessionStore
	resolver    BackendResolver
	factory     llm.Factory
	cfg         config.FeynmanConfig
	temperature float64
	maxTokens   int
	locks       *keyedMutex
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewFeynmanService constructs the session engine.
func NewFeynmanService(docs DocumentReader, sessions FeynmanSessionStore, resolver BackendResolver, factory llm.Factory, cfg config.FeynmanConfig, gen config.GenerationConfig, metrics *MetricsService, logger *zap.Logger) *FeynmanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = len(FallbackFeynmanQuestions)
	}
	if cfg.ReferenceChars <= 0 {
		cfg.ReferenceChars = 2000
	}
	return &FeynmanService{
		docs:        docs,
		sessions:    sessions,
		resolver:    resolver,
		factory:     factory,
		cfg:         cfg,
		temperature: gen.Temperature,
		maxTokens:   gen.MaxTokens,
		locks:       newKeyedMutex(),
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Session returns the stored session for a document.
func (s *FeynmanService) Session(ctx context.Context, documentID string) (*models.FeynmanSession, error) {
	if _, err := s.docs.Get(ctx, documentID); err != nil {
		return nil, err
	}
	session, err := s.sessions.Get(ctx, documentID)
	if errors.Is(err, appErrors.ErrNotFound) {
		return &models.FeynmanSession{DocumentID: documentID, Status: models.FeynmanNotStarted, Questions: []string{}, Responses: map[int]string{}}, nil
	}
	return session, err
}

// Start generates a fresh question set, replacing any previous session.
func (s *FeynmanService) Start(ctx context.Context, documentID string) (*models.FeynmanSession, error) {
	unlock := s.locks.Lock(documentID)
	defer unlock()

	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &models.FeynmanSession{
		DocumentID: documentID,
		Status:     models.FeynmanQuestionsLoading,
		Questions:  []string{},
		Responses:  map[int]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	questions, fallback := s.generateQuestions(ctx, doc)
	if ctx.Err() != nil {
		session.Status = models.FeynmanError
		s.save(context.WithoutCancel(ctx), session)
		return nil, ctx.Err()
	}

	session.Questions = questions
	session.FallbackQuestions = fallback
	session.Status = models.FeynmanActive
	session.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to store feynman session")
	}
	return session, nil
}

// SubmitAnswer records the answer at index. The last answer triggers
// evaluation.
func (s *FeynmanService) SubmitAnswer(ctx context.Context, documentID string, index int, text string) (*models.FeynmanStep, error) {
	unlock := s.locks.Lock(documentID)
	defer unlock()

	session, err := s.sessions.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrSessionState, "feynman session has not been started")
		}
		return nil, err
	}
	if session.Status != models.FeynmanActive {
		return nil, appErrors.Clone(appErrors.ErrSessionState, fmt.Sprintf("feynman session is %s", session.Status))
	}
	if index != session.CurrentIndex {
		return nil, appErrors.Clone(appErrors.ErrSessionState, fmt.Sprintf("expected an answer for question %d", session.CurrentIndex))
	}

	if session.Responses == nil {
		session.Responses = map[int]string{}
	}
	session.Responses[index] = strings.TrimSpace(text)
	session.UpdatedAt = s.now().UTC()

	if index < len(session.Questions)-1 {
		session.CurrentIndex = index + 1
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to store feynman session")
		}
		next := session.CurrentIndex
		return &models.FeynmanStep{Status: session.Status, NextIndex: &next}, nil
	}

	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	session.Status = models.FeynmanEvaluating
	s.save(ctx, session)

	evaluation, err := s.Evaluate(ctx, session.Questions, session.Responses, doc.OriginalText, documentModelType(doc))
	if err != nil {
		session.Status = models.FeynmanError
		s.save(context.WithoutCancel(ctx), session)
		return nil, err
	}

	session.Status = models.FeynmanEvaluated
	session.Evaluation = &evaluation
	session.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to store feynman session")
	}
	return &models.FeynmanStep{Status: session.Status, Evaluation: &evaluation}, nil
}

// Evaluate scores responses against questions. It only fails when ctx is
// cancelled; every backend problem yields a heuristic evaluation.
func (s *FeynmanService) Evaluate(ctx context.Context, questions []string, responses map[int]string, reference string, modelType llm.ModelType) (models.Evaluation, error) {
	answers := make([]string, len(questions))
	for i := range questions {
		answers[i] = strings.TrimSpace(responses[i])
	}

	lowEffort := lo.CountBy(answers, isLowEffort)
	if lowEffort*2 > len(answers) {
		s.metrics.RecordFallback("feynman_evaluate", "low_effort")
		return lowEffortEvaluation(), nil
	}

	backend, err := s.resolver.Resolve(modelType)
	if err != nil {
		return s.fallbackEvaluation(answers, lowEffort, err), nil
	}
	client, err := s.factory.New(backend)
	if err != nil {
		return s.fallbackEvaluation(answers, lowEffort, err), nil
	}

	var qa strings.Builder
	for i, q := range questions {
		fmt.Fprintf(&qa, "Q%d: %s\nA%d: %s\n\n", i+1, q, i+1, answers[i])
	}
	prompt := fmt.Sprintf(feynmanEvaluationTemplate, truncateRunes(reference, s.cfg.ReferenceChars), qa.String())

	raw, err := callModel(ctx, s.metrics, client, backend, "feynman_evaluate", llm.Request{
		System:      feynmanEvaluationSystemPrompt,
		User:        prompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}, s.cfg.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return models.Evaluation{}, ctx.Err()
		}
		return s.fallbackEvaluation(answers, lowEffort, err), nil
	}

	parsed, err := decodeModelJSON[struct {
		Overall      string   `json:"overall"`
		Strengths    []string `json:"strengths"`
		Improvements []string `json:"improvements"`
		Rating       *float64 `json:"rating"`
	}](raw)
	if err != nil {
		return s.fallbackEvaluation(answers, lowEffort, err), nil
	}

	rating := synthesizedRating(answers)
	if parsed.Rating != nil {
		rating = *parsed.Rating
	}
	evaluation := models.Evaluation{
		Overall:      strings.TrimSpace(parsed.Overall),
		Strengths:    nonNil(parsed.Strengths),
		Improvements: nonNil(parsed.Improvements),
		Rating:       clampRating(rating),
		Source:       models.EvaluationFromModel,
	}
	if evaluation.Overall == "" {
		evaluation.Overall = "Thanks for working through the questions. Review the notes below to strengthen your explanations."
	}
	return evaluation, nil
}

func (s *FeynmanService) generateQuestions(ctx context.Context, doc *models.Document) ([]string, bool) {
	fallback := func(err error) ([]string, bool) {
		s.metrics.RecordFallback("feynman_questions", appErrors.FromError(err).Code)
		s.logger.Warn("using fallback feynman questions", zap.String("document_id", doc.ID), zap.Error(err))
		return append([]string(nil), FallbackFeynmanQuestions...), true
	}

	backend, err := s.resolver.Resolve(documentModelType(doc))
	if err != nil {
		return fallback(err)
	}
	client, err := s.factory.New(backend)
	if err != nil {
		return fallback(err)
	}

	prompt := fmt.Sprintf(feynmanQuestionsTemplate, s.cfg.QuestionCount, truncateRunes(doc.OriginalText, backend.CharBudget))
	raw, err := callModel(ctx, s.metrics, client, backend, "feynman_questions", llm.Request{
		System:      feynmanQuestionsSystemPrompt,
		User:        prompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}, s.cfg.Timeout)
	if err != nil {
		return fallback(err)
	}
	questions, err := parseStringArray(raw)
	if err != nil {
		return fallback(err)
	}

	// Pad short replies so the session always has QuestionCount questions.
	for i := 0; len(questions) < s.cfg.QuestionCount; i++ {
		questions = append(questions, FallbackFeynmanQuestions[i%len(FallbackFeynmanQuestions)])
	}
	return questions[:s.cfg.QuestionCount], false
}

func (s *FeynmanService) fallbackEvaluation(answers []string, lowEffort int, cause error) models.Evaluation {
	s.metrics.RecordFallback("feynman_evaluate", appErrors.FromError(cause).Code)
	s.logger.Warn("feynman evaluation fell back to heuristic", zap.Error(cause))

	if lowEffort > 0 {
		return models.Evaluation{
			Overall:      "Some of your explanations were very brief, so only a rough rating could be given.",
			Strengths:    []string{"You worked through every question."},
			Improvements: []string{"Write a full sentence or two for each answer.", "Explain ideas in your own words instead of skipping them."},
			Rating:       lowEffortRating,
			Source:       models.EvaluationFromHeuristic,
		}
	}

	rating := fallbackDefaultRating
	if averageLength(answers) > longAnswerChars {
		rating = fallbackLongRating
	}
	return models.Evaluation{
		Overall:      "Your explanations could not be graded in detail right now. The rating reflects how thoroughly you answered.",
		Strengths:    []string{"You answered every question with an attempt at an explanation."},
		Improvements: []string{"Compare your answers with the material and check for missing steps.", "Try using a concrete example for each concept."},
		Rating:       rating,
		Source:       models.EvaluationFromHeuristic,
	}
}

func (s *FeynmanService) save(ctx context.Context, session *models.FeynmanSession) {
	session.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("failed to store feynman session", zap.String("document_id", session.DocumentID), zap.Error(err))
	}
}

func lowEffortEvaluation() models.Evaluation {
	return models.Evaluation{
		Overall:      "Most answers were too short to show your understanding yet. Try again after reviewing the material.",
		Strengths:    []string{"You finished the session and can now see where to focus."},
		Improvements: []string{"Answer each question in at least a few sentences.", "If you are unsure, explain what you do know instead of skipping."},
		Rating:       lowEffortRating,
		Source:       models.EvaluationLowEffort,
	}
}

func isLowEffort(answer string) bool {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	if _, ok := dismissiveAnswers[normalized]; ok {
		return true
	}
	return utf8.RuneCountInString(normalized) < 10 || len(strings.Fields(normalized)) < 3
}

func averageLength(answers []string) float64 {
	if len(answers) == 0 {
		return 0
	}
	total := lo.SumBy(answers, func(a string) int { return utf8.RuneCountInString(a) })
	return float64(total) / float64(len(answers))
}

func synthesizedRating(answers []string) float64 {
	rating := averageLength(answers) / synthesizedCharsPerPt
	return math.Round(math.Min(rating, synthesizedRatingCap)*10) / 10
}

func clampRating(r float64) float64 {
	if math.IsNaN(r) {
		return 0
	}
	return math.Max(0, math.Min(maxRating, r))
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func documentModelType(doc *models.Document) llm.ModelType {
	mt, err := llm.ParseModelType(doc.ModelType, llm.ModelAzure)
	if err != nil {
		return llm.ModelAzure
	}
	return mt
}
