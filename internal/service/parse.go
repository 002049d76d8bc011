package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/noah-isme/studygen-api/internal/models"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

var (
	fencePattern         = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,(\s*[\]}])`)
)

// maxFragmentStarts bounds how many opening brackets are tried per candidate.
const maxFragmentStarts = 64

// decodeModelJSON recovers a JSON value of type T from model output. Each
// candidate (the raw text, then the body of a fenced code block) is decoded
// whole, then from every opening bracket onwards, stopping at the end of the
// first complete value there. A second pass repeats this with trailing commas
// removed. The first value that decodes into T wins, so prose brackets that do
// not fit the target shape are skipped.
func decodeModelJSON[T any](raw string) (T, error) {
	candidates := jsonCandidates(raw)
	for _, candidate := range candidates {
		if out, ok := decodeCandidate[T](candidate); ok {
			return out, nil
		}
	}
	for _, candidate := range candidates {
		repaired := trailingCommaPattern.ReplaceAllString(candidate, "$1")
		if repaired == candidate {
			continue
		}
		if out, ok := decodeCandidate[T](repaired); ok {
			return out, nil
		}
	}
	var zero T
	return zero, appErrors.Clone(appErrors.ErrMalformedModelOutput, "model output is not valid JSON")
}

func decodeCandidate[T any](candidate string) (T, bool) {
	var out T
	if err := json.Unmarshal([]byte(candidate), &out); err == nil {
		return out, true
	}
	starts := 0
	for i := 0; i < len(candidate) && starts < maxFragmentStarts; i++ {
		if candidate[i] != '[' && candidate[i] != '{' {
			continue
		}
		starts++
		var fragment T
		if err := json.NewDecoder(strings.NewReader(candidate[i:])).Decode(&fragment); err == nil {
			return fragment, true
		}
	}
	return out, false
}

func jsonCandidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	candidates := []string{trimmed}
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	return candidates
}

func malformed(format string, args ...any) error {
	return appErrors.Clone(appErrors.ErrMalformedModelOutput, fmt.Sprintf(format, args...))
}

func parseFlashcards(raw string) (models.Flashcards, error) {
	cards, err := decodeModelJSON[[]models.Flashcard](raw)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, malformed("flashcards: empty array")
	}
	out := make(models.Flashcards, 0, len(cards))
	for i, card := range cards {
		card.Question = strings.TrimSpace(card.Question)
		card.Answer = strings.TrimSpace(card.Answer)
		if card.Question == "" || card.Answer == "" {
			return nil, malformed("flashcards: item %d lacks question or answer", i)
		}
		out = append(out, card)
	}
	return out, nil
}

func parseMultipleChoice(raw string) (models.MultipleChoiceSet, error) {
	items, err := decodeModelJSON[[]struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer *int     `json:"correctAnswer"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, malformed("multipleChoice: empty array")
	}
	out := make(models.MultipleChoiceSet, 0, len(items))
	for i, item := range items {
		question := strings.TrimSpace(item.Question)
		if question == "" {
			return nil, malformed("multipleChoice: item %d lacks question", i)
		}
		if len(item.Options) != 4 {
			return nil, malformed("multipleChoice: item %d has %d options", i, len(item.Options))
		}
		if item.CorrectAnswer == nil || *item.CorrectAnswer < 0 || *item.CorrectAnswer >= len(item.Options) {
			return nil, malformed("multipleChoice: item %d has no valid correctAnswer", i)
		}
		out = append(out, models.MultipleChoiceQuestion{
			Question:      question,
			Options:       item.Options,
			CorrectAnswer: *item.CorrectAnswer,
		})
	}
	return out, nil
}

func parseCornellNotes(raw string) (*models.CornellNotes, error) {
	notes, err := decodeModelJSON[struct {
		Cues    *[]string `json:"cues"`
		Notes   *[]string `json:"notes"`
		Summary *string   `json:"summary"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if notes.Cues == nil || notes.Notes == nil || notes.Summary == nil {
		return nil, malformed("cornellNotes: cues, notes and summary are required")
	}
	if len(*notes.Cues) == 0 && len(*notes.Notes) == 0 {
		return nil, malformed("cornellNotes: no cues or notes")
	}
	return &models.CornellNotes{
		Cues:    *notes.Cues,
		Notes:   *notes.Notes,
		Summary: strings.TrimSpace(*notes.Summary),
	}, nil
}

// parseSummary accepts plain text, a JSON string, or an object with a summary
// field.
func parseSummary(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil && strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(m[1])
	}
	if s, err := decodeModelJSON[string](text); err == nil {
		text = strings.TrimSpace(s)
	} else if obj, err := decodeModelJSON[struct {
		Summary string `json:"summary"`
	}](text); err == nil && strings.HasPrefix(text, "{") {
		text = strings.TrimSpace(obj.Summary)
	}
	if text == "" {
		return "", malformed("summary: empty")
	}
	return text, nil
}

func parseStringArray(raw string) ([]string, error) {
	items, err := decodeModelJSON[[]string](raw)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, malformed("expected a non-empty array of strings")
	}
	return out, nil
}
