package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Flashcard is a single question/answer pair.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CornellNotes is the cues/notes/summary triple of a structured note sheet.
type CornellNotes struct {
	Cues    []string `json:"cues"`
	Notes   []string `json:"notes"`
	Summary string   `json:"summary"`
}

// MultipleChoiceQuestion holds four options and the index of the right one.
type MultipleChoiceQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Flashcards is persisted as a JSONB array.
type Flashcards []Flashcard

// MultipleChoiceSet is persisted as a JSONB array.
type MultipleChoiceSet []MultipleChoiceQuestion

// Document is the persisted result of processing one upload.
type Document struct {
	ID               string            `db:"id" json:"id"`
	FileName         string            `db:"file_name" json:"fileName"`
	OriginalText     string            `db:"original_text" json:"originalText"`
	Flashcards       Flashcards        `db:"flashcards" json:"flashcards"`
	Summary          string            `db:"summary" json:"summary"`
	CornellNotes     *CornellNotes     `db:"cornell_notes" json:"cornellNotes,omitempty"`
	MultipleChoice   MultipleChoiceSet `db:"multiple_choice" json:"multipleChoice"`
	RequestedFormats FormatSet         `db:"requested_formats" json:"requestedFormats"`
	ModelType        string            `db:"model_type" json:"modelType"`
	IsMockData       bool              `db:"is_mock_data" json:"isMockData"`
	CreatedAt        time.Time         `db:"created_at" json:"createdAt"`
}

// Normalize replaces nil sequences with empty ones; flashcards and
// multipleChoice are always serialized as arrays.
func (d *Document) Normalize() {
	if d.Flashcards == nil {
		d.Flashcards = Flashcards{}
	}
	if d.MultipleChoice == nil {
		d.MultipleChoice = MultipleChoiceSet{}
	}
	if d.RequestedFormats == nil {
		d.RequestedFormats = FormatSet{}
	}
}

// DocumentSummary is the listing projection of a Document.
type DocumentSummary struct {
	ID               string    `db:"id" json:"id"`
	FileName         string    `db:"file_name" json:"fileName"`
	RequestedFormats FormatSet `db:"requested_formats" json:"requestedFormats"`
	ModelType        string    `db:"model_type" json:"modelType"`
	IsMockData       bool      `db:"is_mock_data" json:"isMockData"`
	FlashcardCount   int       `db:"flashcard_count" json:"flashcardCount"`
	QuestionCount    int       `db:"question_count" json:"questionCount"`
	HasSummary       bool      `db:"has_summary" json:"hasSummary"`
	HasCornellNotes  bool      `db:"has_cornell_notes" json:"hasCornellNotes"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// Value marshals flashcards to JSON.
func (f Flashcards) Value() (driver.Value, error) {
	if f == nil {
		f = Flashcards{}
	}
	data, err := json.Marshal([]Flashcard(f))
	if err != nil {
		return nil, fmt.Errorf("marshal flashcards: %w", err)
	}
	return data, nil
}

// Scan unmarshals flashcards from JSON.
func (f *Flashcards) Scan(value interface{}) error {
	cards := Flashcards{}
	if err := scanJSON(value, (*[]Flashcard)(&cards)); err != nil {
		return fmt.Errorf("scan flashcards: %w", err)
	}
	*f = cards
	return nil
}

// Value marshals questions to JSON.
func (m MultipleChoiceSet) Value() (driver.Value, error) {
	if m == nil {
		m = MultipleChoiceSet{}
	}
	data, err := json.Marshal([]MultipleChoiceQuestion(m))
	if err != nil {
		return nil, fmt.Errorf("marshal multiple choice: %w", err)
	}
	return data, nil
}

// Scan unmarshals questions from JSON.
func (m *MultipleChoiceSet) Scan(value interface{}) error {
	questions := MultipleChoiceSet{}
	if err := scanJSON(value, (*[]MultipleChoiceQuestion)(&questions)); err != nil {
		return fmt.Errorf("scan multiple choice: %w", err)
	}
	*m = questions
	return nil
}

// Value marshals notes to JSON.
func (n CornellNotes) Value() (driver.Value, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal cornell notes: %w", err)
	}
	return data, nil
}

// Scan unmarshals notes from JSON.
func (n *CornellNotes) Scan(value interface{}) error {
	var notes CornellNotes
	if err := scanJSON(value, &notes); err != nil {
		return fmt.Errorf("scan cornell notes: %w", err)
	}
	*n = notes
	return nil
}
