package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/studygen-api/internal/llm"
	"github.com/noah-isme/studygen-api/internal/models"
	appErrors "github.com/noah-isme/studygen-api/pkg/errors"
)

type resolverStub struct {
	err error
}

func (r resolverStub) Resolve(modelType llm.ModelType) (llm.BackendConfig, error) {
	if r.err != nil {
		return llm.BackendConfig{}, r.err
	}
	return llm.BackendConfig{Type: modelType, ModelID: "test-model", CharBudget: 12000}, nil
}

type fakeCompleter struct {
	mu       sync.Mutex
	requests []llm.Request
	respond  func(ctx context.Context, req llm.Request) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(ctx, req)
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func factoryFor(c llm.Completer) llm.Factory {
	return llm.FactoryFunc(func(llm.BackendConfig) (llm.Completer, error) { return c, nil })
}

func formatOf(req llm.Request) models.FormatKind {
	for kind, p := range formatPrompts {
		if strings.HasPrefix(req.User, p.instruction) {
			return kind
		}
	}
	return ""
}

const (
	flashcardsJSON = `[
		{"question":"What is photosynthesis?","answer":"Conversion of light energy into chemical energy."},
		{"question":"Where does it happen?","answer":"In the chloroplasts."},
		{"question":"What pigment absorbs light?","answer":"Chlorophyll."},
		{"question":"What gas is released?","answer":"Oxygen."},
		{"question":"What sugar is produced?","answer":"Glucose."},
		{"question":"What are the two stages?","answer":"Light reactions and the Calvin cycle."}
	]`
	summaryText   = "Photosynthesis lets plants store light energy as sugar, releasing oxygen as a by-product."
	cornellJSON   = `{"cues":["Light reactions","Calvin cycle"],"notes":["Produce ATP and NADPH.","Fixes carbon dioxide into sugar."],"summary":"Two linked stages turn light into sugar."}`
	quizJSON      = `[{"question":"Which organelle hosts photosynthesis?","options":["Nucleus","Chloroplast","Ribosome","Vacuole"],"correctAnswer":1}]`
	studySentence = "Photosynthesis converts light energy into chemical energy stored in glucose molecules. "
)

func wellFormed(kind models.FormatKind) string {
	switch kind {
	case models.FormatFlashcards:
		return flashcardsJSON
	case models.FormatSummary:
		return summaryText
	case models.FormatCornellNotes:
		return cornellJSON
	case models.FormatMultipleChoice:
		return quizJSON
	}
	return ""
}

func studyText(n int) string {
	return truncateRunes(strings.Repeat(studySentence, n/len(studySentence)+1), n)
}

type docsStub struct {
	mu   sync.Mutex
	docs map[string]*models.Document
	gets int
}

func newDocsStub(docs ...*models.Document) *docsStub {
	s := &docsStub{docs: map[string]*models.Document{}}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *docsStub) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	doc, ok := s.docs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	clone := *doc
	return &clone, nil
}

func (s *docsStub) Put(ctx context.Context, doc *models.Document) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *doc
	s.docs[doc.ID] = &clone
	return doc, nil
}

func (s *docsStub) List(ctx context.Context) ([]models.DocumentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DocumentSummary, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, models.DocumentSummary{ID: d.ID, FileName: d.FileName})
	}
	return out, nil
}

func (s *docsStub) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

type sessionStoreStub struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

func newSessionStoreStub() *sessionStoreStub {
	return &sessionStoreStub{sessions: map[string][]byte{}}
}

func (s *sessionStoreStub) Get(ctx context.Context, documentID string) (*models.FeynmanSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.sessions[documentID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	var session models.FeynmanSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *sessionStoreStub) Save(ctx context.Context, session *models.FeynmanSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.DocumentID] = raw
	return nil
}

type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}
