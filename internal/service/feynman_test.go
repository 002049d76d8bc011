package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
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

const questionsJSON = `["Explain light reactions.","Explain the Calvin cycle.","Why is chlorophyll green?","What does ATP do?","Why do plants need water?"]`

func feynmanDoc() *models.Document {
	return &models.Document{ID: "doc-1", FileName: "bio.pdf", OriginalText: studyText(3000), ModelType: "azure"}
}

func newTestFeynman(resolver BackendResolver, c llm.Completer, sessions FeynmanSessionStore) *FeynmanService {
	cfg := config.FeynmanConfig{QuestionCount: 5, ReferenceChars: 2000, Timeout: time.Second}
	return NewFeynmanService(newDocsStub(feynmanDoc()), sessions, resolver, factoryFor(c), cfg, testGenerationConfig(), nil, zap.NewNop())
}

func feynmanCompleter(evaluation string) *fakeCompleter {
	return &fakeCompleter{respond: func(_ context.Context, req llm.Request) (string, error) {
		if req.System == feynmanQuestionsSystemPrompt {
			return "```json\n" + questionsJSON + "\n```", nil
		}
		return evaluation, nil
	}}
}

func thoughtfulAnswers(n, length int) []string {
	answers := make([]string, n)
	for i := range answers {
		answers[i] = truncateRunes(strings.Repeat("plants capture light to build sugar ", length), length)
	}
	return answers
}

func responsesOf(answers []string) map[int]string {
	out := make(map[int]string, len(answers))
	for i, a := range answers {
		out[i] = a
	}
	return out
}

func TestFeynmanStartGeneratesQuestions(t *testing.T) {
	sessions := newSessionStoreStub()
	svc := newTestFeynman(resolverStub{}, feynmanCompleter(""), sessions)

	session, err := svc.Start(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeynmanActive, session.Status)
	assert.Len(t, session.Questions, 5)
	assert.False(t, session.FallbackQuestions)
	assert.Equal(t, "Explain light reactions.", session.Questions[0])

	stored, err := svc.Session(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, session.Questions, stored.Questions)
}

func TestFeynmanStartFallsBackToGenericQuestions(t *testing.T) {
	completer := &fakeCompleter{respond: func(context.Context, llm.Request) (string, error) {
		return "", appErrors.Clone(appErrors.ErrTransport, "boom")
	}}
	svc := newTestFeynman(resolverStub{}, completer, newSessionStoreStub())

	session, err := svc.Start(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeynmanActive, session.Status)
	assert.Equal(t, FallbackFeynmanQuestions, session.Questions)
	assert.True(t, session.FallbackQuestions)

	unconfigured := newTestFeynman(resolverStub{err: appErrors.ErrBackendUnconfigured}, completer, newSessionStoreStub())
	session, err = unconfigured.Start(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, FallbackFeynmanQuestions, session.Questions)
	assert.Equal(t, 1, completer.Calls())
}

func TestFeynmanStartPadsShortQuestionLists(t *testing.T) {
	completer := &fakeCompleter{respond: func(context.Context, llm.Request) (string, error) {
		return `["Only one question?"]`, nil
	}}
	svc := newTestFeynman(resolverStub{}, completer, newSessionStoreStub())

	session, err := svc.Start(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, session.Questions, 5)
	assert.Equal(t, "Only one question?", session.Questions[0])
	assert.Equal(t, FallbackFeynmanQuestions[0], session.Questions[1])
}

func TestFeynmanStartUnknownDocument(t *testing.T) {
	svc := newTestFeynman(resolverStub{}, feynmanCompleter(""), newSessionStoreStub())
	_, err := svc.Start(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestFeynmanFullFlow(t *testing.T) {
	completer := feynmanCompleter(`{"overall":"Solid grasp.","strengths":["Clear wording"],"improvements":["Add examples"],"rating":4}`)
	svc := newTestFeynman(resolverStub{}, completer, newSessionStoreStub())
	ctx := context.Background()

	_, err := svc.Start(ctx, "doc-1")
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(ctx, "doc-1", 2, "skipping ahead is not allowed here")
	assert.True(t, errors.Is(err, appErrors.ErrSessionState))

	answers := thoughtfulAnswers(5, 120)
	for i := 0; i < 4; i++ {
		step, err := svc.SubmitAnswer(ctx, "doc-1", i, answers[i])
		require.NoError(t, err)
		require.NotNil(t, step.NextIndex)
		assert.Equal(t, i+1, *step.NextIndex)
		assert.Nil(t, step.Evaluation)
	}

	step, err := svc.SubmitAnswer(ctx, "doc-1", 4, answers[4])
	require.NoError(t, err)
	assert.Nil(t, step.NextIndex)
	require.NotNil(t, step.Evaluation)
	assert.Equal(t, models.FeynmanEvaluated, step.Status)
	assert.Equal(t, 4.0, step.Evaluation.Rating)
	assert.Equal(t, models.EvaluationFromModel, step.Evaluation.Source)

	session, err := svc.Session(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeynmanEvaluated, session.Status)
	assert.Len(t, session.Responses, 5)

	_, err = svc.SubmitAnswer(ctx, "doc-1", 4, "again")
	assert.True(t, errors.Is(err, appErrors.ErrSessionState))
}

func TestFeynmanSubmitWithoutSession(t *testing.T) {
	svc := newTestFeynman(resolverStub{}, feynmanCompleter(""), newSessionStoreStub())
	_, err := svc.SubmitAnswer(context.Background(), "doc-1", 0, "anything")
	assert.True(t, errors.Is(err, appErrors.ErrSessionState))

	session, err := svc.Session(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeynmanNotStarted, session.Status)
}

func TestFeynmanConcurrentSubmitsAreSerialized(t *testing.T) {
	svc := newTestFeynman(resolverStub{}, feynmanCompleter(""), newSessionStoreStub())
	_, err := svc.Start(context.Background(), "doc-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubmitAnswer(context.Background(), "doc-1", 0, "a long enough explanation of the idea")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, appErrors.ErrSessionState))
	}
	assert.Equal(t, 1, succeeded)
}

func TestFeynmanEvaluateLowEffortShortCircuits(t *testing.T) {
	completer := feynmanCompleter(`{"rating":5}`)
	svc := newTestFeynman(resolverStub{}, completer, newSessionStoreStub())

	answers := append([]string{"idk", "I don't know", "i dont know"}, thoughtfulAnswers(2, 150)...)
	eval, err := svc.Evaluate(context.Background(), FallbackFeynmanQuestions, responsesOf(answers), "ref", llm.ModelAzure)
	require.NoError(t, err)
	assert.Equal(t, 1.5, eval.Rating)
	assert.Equal(t, models.EvaluationLowEffort, eval.Source)
	assert.Zero(t, completer.Calls())
}

func TestFeynmanEvaluatePromptCarriesReferenceAndAnswers(t *testing.T) {
	completer := feynmanCompleter(`{"overall":"ok","strengths":[],"improvements":[],"rating":3}`)
	svc := newTestFeynman(resolverStub{}, completer, newSessionStoreStub())

	answers := thoughtfulAnswers(5, 120)
	for i := range answers {
		answers[i] = fmt.Sprintf("answer %d: %s", i+1, answers[i])
	}
	_, err := svc.Evaluate(context.Background(), FallbackFeynmanQuestions, responsesOf(answers), studyText(3000), llm.ModelAzure)
	require.NoError(t, err)

	var evaluation *llm.Request
	for i := range completer.requests {
		if completer.requests[i].System == feynmanEvaluationSystemPrompt {
			evaluation = &completer.requests[i]
		}
	}
	require.NotNil(t, evaluation)
	assert.Contains(t, evaluation.User, studyText(2000))
	assert.NotContains(t, evaluation.User, studyText(2001))
	for i, q := range FallbackFeynmanQuestions {
		assert.Contains(t, evaluation.User, fmt.Sprintf("Q%d: %s", i+1, q))
		assert.Contains(t, evaluation.User, fmt.Sprintf("A%d: %s", i+1, answers[i]))
	}
	assert.Contains(t, evaluation.User, "1 to 5 stars")
	for star := 1; star <= 5; star++ {
		assert.Contains(t, evaluation.User, fmt.Sprintf("\n%d - ", star))
	}
}

func TestFeynmanEvaluateClampsRating(t *testing.T) {
	for raw, want := range map[string]float64{"-1": 0, "7.2": 5, "3.5": 3.5} {
		completer := feynmanCompleter(`{"overall":"ok","strengths":[],"improvements":[],"rating":` + raw + `}`)
		svc := newTestFeynman(resolverStub{}, completer, newSessionStoreStub())

		eval, err := svc.Evaluate(context.Background(), FallbackFeynmanQuestions, responsesOf(thoughtfulAnswers(5, 120)), "ref", llm.ModelAzure)
		require.NoError(t, err)
		assert.Equal(t, want, eval.Rating, raw)
		assert.GreaterOrEqual(t, eval.Rating, 0.0)
		assert.LessOrEqual(t, eval.Rating, 5.0)
	}
}

func TestFeynmanEvaluateSynthesizesMissingRating(t *testing.T) {
	completer := feynmanCompleter(`{"overall":"Good effort.","strengths":["Detail"],"improvements":["Brevity"]}`)
	svc := newTestFeynman(resolverStub{}, completer, newSessionStoreStub())

	eval, err := svc.Evaluate(context.Background(), FallbackFeynmanQuestions, responsesOf(thoughtfulAnswers(5, 80)), "ref", llm.ModelAzure)
	require.NoError(t, err)
	assert.Equal(t, 2.0, eval.Rating)

	eval, err = svc.Evaluate(context.Background(), FallbackFeynmanQuestions, responsesOf(thoughtfulAnswers(5, 600)), "ref", llm.ModelAzure)
	require.NoError(t, err)
	assert.Equal(t, 3.0, eval.Rating)
}

func TestFeynmanEvaluateFallbackRatings(t *testing.T) {
	failing := &fakeCompleter{respond: func(context.Context, llm.Request) (string, error) {
		return "", appErrors.Clone(appErrors.ErrTransport, "boom")
	}}
	garbage := feynmanCompleter("I'd rate this a four out of five!")

	cases := []struct {
		name    string
		c       *fakeCompleter
		answers []string
		want    float64
	}{
		{"long answers", failing, thoughtfulAnswers(5, 150), 2.5},
		{"medium answers", failing, thoughtfulAnswers(5, 60), 2.0},
		{"one low effort answer", failing, append(thoughtfulAnswers(4, 150), "idk"), 1.5},
		{"unparseable output", garbage, thoughtfulAnswers(5, 150), 2.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestFeynman(resolverStub{}, tc.c, newSessionStoreStub())
			eval, err := svc.Evaluate(context.Background(), FallbackFeynmanQuestions, responsesOf(tc.answers), "ref", llm.ModelAzure)
			require.NoError(t, err)
			assert.Equal(t, tc.want, eval.Rating)
			assert.Equal(t, models.EvaluationFromHeuristic, eval.Source)
			assert.NotEmpty(t, eval.Overall)
		})
	}
}

func TestFeynmanCancelledEvaluationEntersErrorState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	completer := &fakeCompleter{respond: func(callCtx context.Context, req llm.Request) (string, error) {
		if req.System == feynmanQuestionsSystemPrompt {
			return questionsJSON, nil
		}
		cancel()
		<-callCtx.Done()
		return "", callCtx.Err()
	}}
	svc := newTestFeynman(resolverStub{}, completer, newSessionStoreStub())

	_, err := svc.Start(ctx, "doc-1")
	require.NoError(t, err)
	answers := thoughtfulAnswers(5, 120)
	for i := 0; i < 4; i++ {
		_, err := svc.SubmitAnswer(ctx, "doc-1", i, answers[i])
		require.NoError(t, err)
	}

	_, err = svc.SubmitAnswer(ctx, "doc-1", 4, answers[4])
	require.ErrorIs(t, err, context.Canceled)

	session, err := svc.Session(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeynmanError, session.Status)

	restarted, err := svc.Start(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeynmanActive, restarted.Status)
	assert.Empty(t, restarted.Responses)
}

func TestIsLowEffort(t *testing.T) {
	cases := map[string]bool{
		"idk":                          true,
		"  IDK ":                       true,
		"I don't know":                 true,
		"i dont know":                  true,
		"photosynthesis":               true,
		"it makes sugar":               false,
		"short one":                    true,
		"plants turn light into sugar": false,
	}
	for answer, want := range cases {
		assert.Equal(t, want, isLowEffort(answer), answer)
	}
}
