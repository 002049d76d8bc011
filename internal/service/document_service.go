package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/studygen-api/internal/dto"
	"github.com/noah-isme/studygen-api/internal/llm"
	"github.com/noah-isme/studygen-api/internal/models"
	"github.com/noah-isme/studygen-api/pkg/config"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
	"github.com/noah-isme/studygen-api/pkg/export"
	"github.com/noah-isme/studygen-api/pkg/extract"
	"github.com/noah-isme/studygen-api/pkg/sharetoken"
)

const defaultFileName = "Untitled document"

// DocumentRepository persists document records.
type DocumentRepository interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	Put(ctx context.Context, doc *models.Document) (*models.Document, error)
	List(ctx context.Context) ([]models.DocumentSummary, error)
}

// Processor turns document text into study materials.
type Processor interface {
	Process(ctx context.Context, text string, formats models.FormatSet, modelType llm.ModelType) ProcessedResult
}

// DocumentServiceConfig groups the settings the document facade needs.
type DocumentServiceConfig struct {
	MaxUploadBytes   int64
	DefaultModelType string
	BaseURL          string
	APIPrefix        string
	CacheTTL         time.Duration
}

// NewDocumentServiceConfig derives the facade settings from application config.
func NewDocumentServiceConfig(cfg *config.Config) DocumentServiceConfig {
	return DocumentServiceConfig{
		MaxUploadBytes:   cfg.Uploads.MaxBytes,
		DefaultModelType: cfg.Generation.DefaultModelType,
		BaseURL:          cfg.BaseURL,
		APIPrefix:        cfg.APIPrefix,
		CacheTTL:         cfg.Cache.DocumentTTL,
	}
}

// DocumentService is the entry point for uploads, reads, exports and shares.
type DocumentService struct {
	repo      DocumentRepository
	pipeline  Processor
	cache     *CacheService
	signer    *sharetoken.Signer
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	cfg       DocumentServiceConfig
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewDocumentService constructs the document facade.
func NewDocumentService(repo DocumentRepository, pipeline Processor, cache *CacheService, signer *sharetoken.Signer, cfg DocumentServiceConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:      repo,
		pipeline:  pipeline,
		cache:     cache,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validator.New(),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Upload extracts text, runs the pipeline and stores the resulting record.
func (s *DocumentService) Upload(ctx context.Context, req dto.UploadDocumentRequest, upload dto.DocumentUpload) (*dto.UploadDocumentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "at least one format is required")
	}
	formats, err := models.ParseFormatSet(req.Formats...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if len(formats) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one format is required")
	}
	defaultModel, err := llm.ParseModelType(s.cfg.DefaultModelType, llm.ModelAzure)
	if err != nil {
		defaultModel = llm.ModelAzure
	}
	modelType, err := llm.ParseModelType(req.ModelType, defaultModel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if len(upload.Data) == 0 && strings.TrimSpace(req.Text) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file or text is required")
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(upload.Data)) > s.cfg.MaxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes))
	}

	fileName := firstNonEmpty(req.FileName, upload.FileName, defaultFileName)
	text := s.documentText(fileName, req.Text, upload.Data)

	result := s.pipeline.Process(ctx, text, formats, modelType)

	doc := &models.Document{
		ID:               s.newID(),
		FileName:         fileName,
		OriginalText:     text,
		Flashcards:       result.Flashcards,
		Summary:          result.Summary,
		CornellNotes:     result.CornellNotes,
		MultipleChoice:   result.MultipleChoice,
		RequestedFormats: formats,
		ModelType:        string(modelType),
		IsMockData:       result.IsMockData,
		CreatedAt:        s.now().UTC(),
	}
	doc.Normalize()

	saved, err := s.repo.Put(ctx, doc)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to store document")
	}
	s.cache.Invalidate(ctx, documentListCacheKey)

	s.logger.Info("document processed",
		zap.String("document_id", saved.ID),
		zap.Strings("formats", formatNames(formats)),
		zap.String("model_type", string(modelType)),
		zap.Bool("mock", saved.IsMockData),
		zap.String("fallback_reason", result.FallbackReason))

	return &dto.UploadDocumentResponse{ID: saved.ID, IsMockData: saved.IsMockData}, nil
}

// Get returns a stored record, reading through the cache.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document id is required")
	}
	var cached models.Document
	if s.cache.Get(ctx, documentCacheKey(id), &cached) {
		cached.Normalize()
		return &cached, nil
	}
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Normalize()
	s.cache.Set(ctx, documentCacheKey(id), doc, s.cfg.CacheTTL)
	return doc, nil
}

// List returns summaries for every stored record, newest first.
func (s *DocumentService) List(ctx context.Context) ([]models.DocumentSummary, error) {
	var cached []models.DocumentSummary
	if s.cache.Get(ctx, documentListCacheKey, &cached) {
		return cached, nil
	}
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list documents")
	}
	if items == nil {
		items = []models.DocumentSummary{}
	}
	s.cache.Set(ctx, documentListCacheKey, items, s.cfg.CacheTTL)
	return items, nil
}

// Seed overwrites the record stored under id. Last write wins.
func (s *DocumentService) Seed(ctx context.Context, id string, req dto.SeedDocumentRequest) (*models.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seed payload")
	}
	formats, err := models.ParseFormatSet(req.RequestedFormats...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	doc := &models.Document{
		ID:               id,
		FileName:         req.FileName,
		OriginalText:     req.OriginalText,
		Flashcards:       req.Flashcards,
		Summary:          req.Summary,
		CornellNotes:     req.CornellNotes,
		MultipleChoice:   req.MultipleChoice,
		RequestedFormats: formats,
		ModelType:        firstNonEmpty(req.ModelType, s.cfg.DefaultModelType, string(llm.ModelAzure)),
		IsMockData:       req.IsMockData,
		CreatedAt:        s.now().UTC(),
	}
	if existing, err := s.repo.Get(ctx, id); err == nil {
		doc.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, appErrors.ErrNotFound) {
		return nil, err
	}
	doc.Normalize()

	saved, err := s.repo.Put(ctx, doc)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to store document")
	}
	s.cache.Invalidate(ctx, documentCacheKey(id), documentListCacheKey)
	return saved, nil
}

// Share issues a signed read-only link for an existing record.
func (s *DocumentService) Share(ctx context.Context, id string) (*dto.ShareLinkResponse, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Sign(id)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to sign share link")
	}
	url := strings.TrimRight(s.cfg.BaseURL, "/") + s.cfg.APIPrefix + "/shared/" + token
	return &dto.ShareLinkResponse{URL: url, Token: token, ExpiresAt: expiresAt}, nil
}

// Shared resolves a share token to its record.
func (s *DocumentService) Shared(ctx context.Context, token string) (*models.Document, error) {
	id, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInvalidShareToken, "")
	}
	return s.Get(ctx, id)
}

// Export renders a record as csv (flashcards) or pdf (study sheet).
func (s *DocumentService) Export(ctx context.Context, id, format string) (*dto.ExportFile, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	base := exportBaseName(doc.FileName)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "pdf":
		data, err := s.pdf.Render(studySheet(doc))
		if err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to render pdf")
		}
		return &dto.ExportFile{FileName: base + ".pdf", ContentType: "application/pdf", Data: data}, nil
	case "csv":
		rows := make([][]string, 0, len(doc.Flashcards))
		for _, card := range doc.Flashcards {
			rows = append(rows, []string{card.Question, card.Answer})
		}
		data, err := s.csv.Render(export.Dataset{Headers: []string{"question", "answer"}, Rows: rows})
		if err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to render csv")
		}
		return &dto.ExportFile{FileName: base + "-flashcards.csv", ContentType: "text/csv", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *DocumentService) documentText(fileName, rawText string, data []byte) string {
	if strings.TrimSpace(rawText) != "" {
		return strings.TrimSpace(rawText)
	}
	text, err := extract.Text(fileName, data)
	if err != nil {
		s.logger.Warn("text extraction failed",
			zap.String("file_name", fileName),
			zap.String("detected_type", extract.DetectType(data)),
			zap.Error(err),
		)
		return extract.Placeholder
	}
	if text == "" {
		return extract.Placeholder
	}
	return text
}

func studySheet(doc *models.Document) export.Sheet {
	sheet := export.Sheet{
		Title:    doc.FileName,
		Subtitle: "Study materials generated " + doc.CreatedAt.Format("2 Jan 2006"),
	}
	if doc.IsMockData {
		sheet.Subtitle += " (sample content)"
	}
	if doc.Summary != "" {
		sheet.Sections = append(sheet.Sections, export.Section{Heading: "Summary", Paragraphs: strings.Split(doc.Summary, "\n\n")})
	}
	if doc.CornellNotes != nil {
		items := make([]string, 0, len(doc.CornellNotes.Cues))
		for i, cue := range doc.CornellNotes.Cues {
			note := ""
			if i < len(doc.CornellNotes.Notes) {
				note = doc.CornellNotes.Notes[i]
			}
			items = append(items, cue+": "+note)
		}
		for _, note := range doc.CornellNotes.Notes[min(len(doc.CornellNotes.Cues), len(doc.CornellNotes.Notes)):] {
			items = append(items, note)
		}
		section := export.Section{Heading: "Cornell notes", Items: items}
		if doc.CornellNotes.Summary != "" {
			section.Paragraphs = []string{doc.CornellNotes.Summary}
		}
		sheet.Sections = append(sheet.Sections, section)
	}
	if len(doc.Flashcards) > 0 {
		items := make([]string, 0, len(doc.Flashcards))
		for _, card := range doc.Flashcards {
			items = append(items, fmt.Sprintf("Q: %s  A: %s", card.Question, card.Answer))
		}
		sheet.Sections = append(sheet.Sections, export.Section{Heading: "Flashcards", Items: items})
	}
	if len(doc.MultipleChoice) > 0 {
		quiz := export.Section{Heading: "Quiz"}
		key := make([]string, 0, len(doc.MultipleChoice))
		for i, q := range doc.MultipleChoice {
			quiz.Paragraphs = append(quiz.Paragraphs, fmt.Sprintf("%d. %s", i+1, q.Question))
			for j, opt := range q.Options {
				quiz.Paragraphs = append(quiz.Paragraphs, fmt.Sprintf("    %c) %s", 'A'+j, opt))
			}
			key = append(key, fmt.Sprintf("%d: %c", i+1, 'A'+q.CorrectAnswer))
		}
		sheet.Sections = append(sheet.Sections, quiz, export.Section{Heading: "Answer key", Items: key})
	}
	return sheet
}

func exportBaseName(fileName string) string {
	name := strings.TrimSpace(fileName)
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	if strings.Trim(name, "-") == "" {
		return "study-materials"
	}
	return name
}

func formatNames(set models.FormatSet) []string {
	return lo.Map(set, func(k models.FormatKind, _ int) string { return string(k) })
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
