package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatSetAliasesAndOrder(t *testing.T) {
	set, err := ParseFormatSet("quiz, Summary", "flashcards", "summary", "cornell-notes")
	require.NoError(t, err)
	assert.Equal(t, FormatSet{FormatFlashcards, FormatSummary, FormatCornellNotes, FormatMultipleChoice}, set)

	set, err = ParseFormatSet("multipleChoice,cornellNotes")
	require.NoError(t, err)
	assert.Equal(t, FormatSet{FormatCornellNotes, FormatMultipleChoice}, set)
}

func TestParseFormatSetRejectsUnknown(t *testing.T) {
	_, err := ParseFormatSet("flashcards,mindmap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mindmap")
}

func TestParseFormatSetEmpty(t *testing.T) {
	set, err := ParseFormatSet("", " , ")
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestFormatSetValueScan(t *testing.T) {
	value, err := NewFormatSet(FormatSummary, FormatFlashcards).Value()
	require.NoError(t, err)
	assert.Equal(t, `["flashcards","summary"]`, string(value.([]byte)))

	var nilSet FormatSet
	value, err = nilSet.Value()
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(value.([]byte)))

	var scanned FormatSet
	require.NoError(t, scanned.Scan(`["summary","flashcards","summary"]`))
	assert.Equal(t, FormatSet{FormatFlashcards, FormatSummary}, scanned)
	assert.Error(t, scanned.Scan(42))
}

func TestDocumentJSONAlwaysHasArrays(t *testing.T) {
	doc := Document{ID: "doc-1"}
	doc.Normalize()

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"flashcards":[]`)
	assert.Contains(t, string(raw), `"multipleChoice":[]`)
	assert.NotContains(t, string(raw), "cornellNotes")
}

func TestCornellNotesScanNull(t *testing.T) {
	var notes CornellNotes
	require.NoError(t, notes.Scan(nil))
	assert.Empty(t, notes.Cues)

	require.NoError(t, notes.Scan([]byte(`{"cues":["c"],"notes":["n"],"summary":"s"}`)))
	assert.Equal(t, []string{"c"}, notes.Cues)
	assert.Equal(t, "s", notes.Summary)
}

func TestFlashcardsScanNull(t *testing.T) {
	cards := Flashcards{{Question: "old", Answer: "old"}}
	require.NoError(t, cards.Scan(nil))
	assert.NotNil(t, cards)
	assert.Empty(t, cards)
}
