package service

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/noah-isme/studygen-api/internal/models"
)

const generatorSystemPrompt = `You are a study assistant that turns course material into revision aids. Answer only with the requested output and never add commentary about yourself. When JSON is requested, reply with JSON only.`

// formatPrompt is one row of the generation table: the instruction, an
// example payload, and whether the reply is JSON at all.
type formatPrompt struct {
	instruction string
	example     string
	schema      string
	json        bool
	heavy       bool
}

var formatPrompts = map[models.FormatKind]formatPrompt{
	models.FormatFlashcards: {
		instruction: "Create between 5 and 10 flashcards covering the key ideas of the document below. Each flashcard has a short question and a precise answer.",
		example:     `[{"question":"What is photosynthesis?","answer":"The process plants use to turn light energy into chemical energy."}]`,
		schema:      schemaFor[models.Flashcards](),
		json:        true,
		heavy:       true,
	},
	models.FormatSummary: {
		instruction: "Write a clear summary of the document below in a few short paragraphs. Cover definitions, core concepts and examples. Reply with plain text, not JSON.",
	},
	models.FormatCornellNotes: {
		instruction: "Produce Cornell-style notes for the document below: cues are short prompts or keywords, notes are the matching detailed points, and summary is a two or three sentence wrap-up.",
		example:     `{"cues":["Light reactions"],"notes":["Occur in the thylakoid membrane and produce ATP and NADPH."],"summary":"Photosynthesis stores light energy as glucose."}`,
		schema:      schemaFor[models.CornellNotes](),
		json:        true,
		heavy:       true,
	},
	models.FormatMultipleChoice: {
		instruction: "Write between 5 and 10 multiple-choice questions about the document below. Every question has exactly 4 options and correctAnswer is the zero-based index of the right option.",
		example:     `[{"question":"Where do the light reactions take place?","options":["Stroma","Thylakoid membrane","Nucleus","Cell wall"],"correctAnswer":1}]`,
		schema:      schemaFor[models.MultipleChoiceSet](),
		json:        true,
		heavy:       true,
	},
}

// buildFormatPrompt renders the user prompt for kind around the already
// truncated document text.
func buildFormatPrompt(kind models.FormatKind, text string) (string, error) {
	p, ok := formatPrompts[kind]
	if !ok {
		return "", fmt.Errorf("no prompt registered for format %q", kind)
	}
	if !p.json {
		return fmt.Sprintf("%s\n\nDocument:\n%s", p.instruction, text), nil
	}
	prompt := fmt.Sprintf("%s\n\nReply with JSON only, shaped like this example:\n%s\n", p.instruction, p.example)
	if p.schema != "" {
		prompt += fmt.Sprintf("\nThe reply must validate against this JSON schema:\n%s\n", p.schema)
	}
	return prompt + fmt.Sprintf("\nDocument:\n%s", text), nil
}

func schemaFor[T any]() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""
	raw, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	return string(raw)
}

const chatSystemPrompt = `You are a helpful tutor answering questions about a single document the student uploaded. Ground every answer in the document. If the document does not cover the question, say so briefly and offer what related information it does contain.`

const chatPromptTemplate = `Document:
%s

Question:
%s`

const feynmanQuestionsSystemPrompt = `You are a tutor applying the Feynman technique. You ask probing questions that make a student explain ideas in their own simple words.`

const feynmanQuestionsTemplate = `Read the study material below and write exactly %d open questions that ask the student to explain its key concepts simply, as if teaching a beginner. Reply with a JSON array of strings only.

Material:
%s`

const feynmanEvaluationSystemPrompt = `You are a patient tutor grading a student's explanations using the Feynman technique. Be encouraging but honest.`

const feynmanEvaluationTemplate = `Grade the student's explanations below against the reference material.

Rating rubric (1 to 5 stars):
1 - mostly missing or incorrect explanations
2 - fragments of understanding with major gaps
3 - core ideas explained with some gaps or jargon
4 - clear and mostly complete explanations in simple words
5 - complete, accurate and simple enough to teach a beginner

Reference material:
%s

Questions and answers:
%s
Reply with JSON only, shaped like:
{"overall":"...","strengths":["..."],"improvements":["..."],"rating":3.5}`
