package service

import "github.com/noah-isme/studygen-api/internal/models"

// Fallback reasons attached to mock results.
const (
	ReasonBackendUnconfigured = "backend_unconfigured"
	ReasonInsufficientContent = "insufficient_content"
	ReasonBackendUnavailable  = "backend_unavailable"
	ReasonQuizFailed          = "quiz_failed"
	ReasonAllFormatsFailed    = "all_formats_failed"
)

var mockFlashcards = models.Flashcards{
	{Question: "What is active recall?", Answer: "Retrieving information from memory instead of rereading it, which strengthens long-term retention."},
	{Question: "What is spaced repetition?", Answer: "Reviewing material at increasing intervals so each review happens just before it would be forgotten."},
	{Question: "What does the Feynman technique ask you to do?", Answer: "Explain a concept in simple words as if teaching a beginner, then fill the gaps you discover."},
	{Question: "Why are Cornell notes split into cues and notes?", Answer: "Cues act as self-test prompts while the notes column holds the detail to check answers against."},
	{Question: "What is interleaving?", Answer: "Mixing different topics or problem types in one study session instead of practising one at a time."},
}

const mockSummary = "This is sample study material shown because the document could not be processed right now. " +
	"Effective study combines active recall, spaced repetition and self-explanation. " +
	"Upload the document again later to generate materials tailored to its content."

var mockCornellNotes = models.CornellNotes{
	Cues: []string{"Active recall", "Spaced repetition", "Self-explanation"},
	Notes: []string{
		"Test yourself with questions before looking at the answers.",
		"Schedule reviews at growing intervals such as 1, 3 and 7 days.",
		"Explain each idea aloud in plain language to find gaps.",
	},
	Summary: "Sample notes: retrieval practice spread over time, combined with explaining ideas simply, builds durable understanding.",
}

var mockMultipleChoice = models.MultipleChoiceSet{
	{Question: "Which technique relies on retrieving information from memory?", Options: []string{"Rereading", "Active recall", "Highlighting", "Copying notes"}, CorrectAnswer: 1},
	{Question: "Spaced repetition schedules reviews at what kind of intervals?", Options: []string{"Fixed daily", "Random", "Increasing", "Decreasing"}, CorrectAnswer: 2},
	{Question: "In Cornell notes, what is the left column used for?", Options: []string{"Cues and questions", "Drawings", "References", "Homework"}, CorrectAnswer: 0},
	{Question: "The Feynman technique asks you to explain a topic to whom?", Options: []string{"An expert", "A beginner", "An examiner", "Yourself silently"}, CorrectAnswer: 1},
	{Question: "Interleaving means studying how?", Options: []string{"One topic per week", "Only before exams", "With music", "Mixing related topics in one session"}, CorrectAnswer: 3},
}

// MockResult returns fixed sample content for every requested format. It is
// pure and makes no backend calls.
func MockResult(formats models.FormatSet, reason string) ProcessedResult {
	result := ProcessedResult{IsMockData: true, FallbackReason: reason}
	for _, kind := range formats {
		switch kind {
		case models.FormatFlashcards:
			result.Flashcards = append(models.Flashcards(nil), mockFlashcards...)
		case models.FormatSummary:
			result.Summary = mockSummary
		case models.FormatCornellNotes:
			notes := mockCornellNotes
			notes.Cues = append([]string(nil), mockCornellNotes.Cues...)
			notes.Notes = append([]string(nil), mockCornellNotes.Notes...)
			result.CornellNotes = &notes
		case models.FormatMultipleChoice:
			result.MultipleChoice = append(models.MultipleChoiceSet(nil), mockMultipleChoice...)
		default:
			continue
		}
		result.Produced = append(result.Produced, kind)
	}
	return result
}
