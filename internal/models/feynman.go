package models

import "time"

// FeynmanStatus is the state of an explain-it-back session.
type FeynmanStatus string

const (
	FeynmanNotStarted       FeynmanStatus = "not_started"
	FeynmanQuestionsLoading FeynmanStatus = "questions_loading"
	FeynmanActive           FeynmanStatus = "active"
	FeynmanEvaluating       FeynmanStatus = "evaluating"
	FeynmanEvaluated        FeynmanStatus = "evaluated"
	FeynmanError            FeynmanStatus = "error"
)

// EvaluationSource records how a rating was produced.
type EvaluationSource string

const (
	EvaluationFromModel     EvaluationSource = "model"
	EvaluationLowEffort     EvaluationSource = "low_effort"
	EvaluationFromHeuristic EvaluationSource = "fallback"
)

// Evaluation scores a learner's explanations on a 0-5 scale.
type Evaluation struct {
	Overall      string           `json:"overall"`
	Strengths    []string         `json:"strengths"`
	Improvements []string         `json:"improvements"`
	Rating       float64          `json:"rating"`
	Source       EvaluationSource `json:"source"`
}

// FeynmanSession tracks one learner's pass through the questions for a
// document. Sessions are keyed by document id.
type FeynmanSession struct {
	DocumentID        string         `json:"documentId"`
	Status            FeynmanStatus  `json:"status"`
	Questions         []string       `json:"questions"`
	Responses         map[int]string `json:"responses"`
	CurrentIndex      int            `json:"currentIndex"`
	Evaluation        *Evaluation    `json:"evaluation,omitempty"`
	FallbackQuestions bool           `json:"fallbackQuestions"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// FeynmanStep is the outcome of submitting one answer: either the next
// question index or, after the last question, the evaluation.
type FeynmanStep struct {
	Status     FeynmanStatus `json:"status"`
	NextIndex  *int          `json:"nextIndex,omitempty"`
	Evaluation *Evaluation   `json:"evaluation,omitempty"`
}
