package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studygen-api/internal/models"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

// QueryObserver receives database timings.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// DocumentRepository persists generated study documents in Postgres.
type DocumentRepository struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewDocumentRepository constructs the repository. observer may be nil.
func NewDocumentRepository(db *sqlx.DB, observer QueryObserver) *DocumentRepository {
	return &DocumentRepository{db: db, observer: observer}
}

const documentColumns = `id, file_name, original_text, flashcards, summary, cornell_notes, multiple_choice, requested_formats, model_type, is_mock_data, created_at`

// Get returns the document with id or ErrNotFound.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	defer r.observe("documents_get", time.Now())

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

// Put inserts doc or overwrites the row with the same id.
func (r *DocumentRepository) Put(ctx context.Context, doc *models.Document) (*models.Document, error) {
	defer r.observe("documents_put", time.Now())

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Normalize()

	const query = `INSERT INTO documents (id, file_name, original_text, flashcards, summary, cornell_notes, multiple_choice, requested_formats, model_type, is_mock_data, created_at)
VALUES (:id, :file_name, :original_text, :flashcards, :summary, :cornell_notes, :multiple_choice, :requested_formats, :model_type, :is_mock_data, :created_at)
ON CONFLICT (id) DO UPDATE SET
	file_name = EXCLUDED.file_name,
	original_text = EXCLUDED.original_text,
	flashcards = EXCLUDED.flashcards,
	summary = EXCLUDED.summary,
	cornell_notes = EXCLUDED.cornell_notes,
	multiple_choice = EXCLUDED.multiple_choice,
	requested_formats = EXCLUDED.requested_formats,
	model_type = EXCLUDED.model_type,
	is_mock_data = EXCLUDED.is_mock_data,
	created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return nil, fmt.Errorf("put document: %w", err)
	}
	return doc, nil
}

// List returns summaries of every document, newest first.
func (r *DocumentRepository) List(ctx context.Context) ([]models.DocumentSummary, error) {
	defer r.observe("documents_list", time.Now())

	const query = `SELECT id, file_name, requested_formats, model_type, is_mock_data,
	jsonb_array_length(flashcards) AS flashcard_count,
	jsonb_array_length(multiple_choice) AS question_count,
	summary <> '' AS has_summary,
	cornell_notes IS NOT NULL AS has_cornell_notes,
	created_at
FROM documents ORDER BY created_at DESC, id`
	items := []models.DocumentSummary{}
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return items, nil
}

func (r *DocumentRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}
