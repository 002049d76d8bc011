package dto

import (
	"time"

	"github.com/noah-isme/studygen-api/internal/models"
)

// UploadDocumentRequest holds the multipart form fields sent with an upload.
// Text may replace the file for already extracted content.
type UploadDocumentRequest struct {
	Formats   []string `form:"formats" json:"formats" validate:"required,min=1,dive,required"`
	ModelType string   `form:"modelType" json:"modelType" validate:"omitempty,max=32"`
	Text      string   `form:"text" json:"text"`
	FileName  string   `form:"fileName" json:"fileName" validate:"omitempty,max=255"`
}

// DocumentUpload is the file half of an upload.
type DocumentUpload struct {
	FileName string
	Data     []byte
}

// UploadDocumentResponse is returned once processing finishes.
type UploadDocumentResponse struct {
	ID         string `json:"id"`
	IsMockData bool   `json:"isMockData"`
}

// SeedDocumentRequest overwrites a record wholesale on non-production builds.
type SeedDocumentRequest struct {
	FileName         string                   `json:"fileName" validate:"required,max=255"`
	OriginalText     string                   `json:"originalText" validate:"required"`
	Flashcards       models.Flashcards        `json:"flashcards" validate:"dive"`
	Summary          string                   `json:"summary"`
	CornellNotes     *models.CornellNotes     `json:"cornellNotes"`
	MultipleChoice   models.MultipleChoiceSet `json:"multipleChoice" validate:"dive"`
	RequestedFormats []string                 `json:"requestedFormats"`
	ModelType        string                   `json:"modelType"`
	IsMockData       bool                     `json:"isMockData"`
}

// ChatRequest is one chat turn.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// FeynmanAnswerRequest submits the explanation for one question.
type FeynmanAnswerRequest struct {
	Index *int   `json:"index" validate:"required,min=0"`
	Text  string `json:"text" validate:"max=8000"`
}

// ShareLinkResponse describes a signed read-only link.
type ShareLinkResponse struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExportFile is a rendered download.
type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}
