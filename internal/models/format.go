package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FormatKind names one kind of generated study material.
type FormatKind string

const (
	FormatFlashcards     FormatKind = "flashcards"
	FormatSummary        FormatKind = "summary"
	FormatCornellNotes   FormatKind = "cornellNotes"
	FormatMultipleChoice FormatKind = "multipleChoice"
)

// AllFormats lists every kind in canonical order.
var AllFormats = []FormatKind{FormatFlashcards, FormatSummary, FormatCornellNotes, FormatMultipleChoice}

var formatAliases = map[string]FormatKind{
	"flashcards":       FormatFlashcards,
	"flashcard":        FormatFlashcards,
	"summary":          FormatSummary,
	"cornellnotes":     FormatCornellNotes,
	"cornell-notes":    FormatCornellNotes,
	"cornell":          FormatCornellNotes,
	"notes":            FormatCornellNotes,
	"structured-notes": FormatCornellNotes,
	"multiplechoice":   FormatMultipleChoice,
	"multiple-choice":  FormatMultipleChoice,
	"quiz":             FormatMultipleChoice,
	"mcq":              FormatMultipleChoice,
}

// ParseFormatKind resolves a client-supplied name, accepting a few aliases.
func ParseFormatKind(raw string) (FormatKind, bool) {
	kind, ok := formatAliases[strings.ToLower(strings.TrimSpace(raw))]
	return kind, ok
}

func (k FormatKind) order() int {
	for i, f := range AllFormats {
		if f == k {
			return i
		}
	}
	return len(AllFormats)
}

// FormatSet is a deduplicated, canonically ordered set of kinds stored as a
// JSON array.
type FormatSet []FormatKind

// NewFormatSet builds a set from kinds, dropping duplicates.
func NewFormatSet(kinds ...FormatKind) FormatSet {
	seen := make(map[FormatKind]struct{}, len(kinds))
	set := make(FormatSet, 0, len(kinds))
	for _, k := range kinds {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		set = append(set, k)
	}
	sort.Slice(set, func(i, j int) bool { return set[i].order() < set[j].order() })
	return set
}

// ParseFormatSet parses comma separated or repeated names.
func ParseFormatSet(values ...string) (FormatSet, error) {
	kinds := make([]FormatKind, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			kind, ok := ParseFormatKind(part)
			if !ok {
				return nil, fmt.Errorf("unknown format %q", strings.TrimSpace(part))
			}
			kinds = append(kinds, kind)
		}
	}
	return NewFormatSet(kinds...), nil
}

// Has reports whether kind is in the set.
func (s FormatSet) Has(kind FormatKind) bool {
	for _, k := range s {
		if k == kind {
			return true
		}
	}
	return false
}

// Value marshals the set to JSON for persistence.
func (s FormatSet) Value() (driver.Value, error) {
	if s == nil {
		s = FormatSet{}
	}
	data, err := json.Marshal([]FormatKind(s))
	if err != nil {
		return nil, fmt.Errorf("marshal format set: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSON array into the set.
func (s *FormatSet) Scan(value interface{}) error {
	var kinds []FormatKind
	if err := scanJSON(value, &kinds); err != nil {
		return fmt.Errorf("scan format set: %w", err)
	}
	*s = NewFormatSet(kinds...)
	return nil
}

func scanJSON(value interface{}, dest interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
