package storage

import (
	"sync"
	"time"

	"docflow-backend/internal/model"
)

type MemoryStorage struct {
	documents map[string]*model.Document
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		documents: make(map[string]*model.Document),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) Backup() error {
	return nil
}

func (m *MemoryStorage) CreateDocument(doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.documents[doc.ID] = doc
	return nil
}

func (m *MemoryStorage) GetDocument(documentID string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.documents[documentID]
	if !exists {
		return nil, ErrDocumentNotFound
	}

	return doc, nil
}

func (m *MemoryStorage) UpdateDocument(doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.documents[doc.ID]; !exists {
		return ErrDocumentNotFound
	}

	m.documents[doc.ID] = doc
	return nil
}

func (m *MemoryStorage) DeleteDocument(documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.documents[documentID]; !exists {
		return ErrDocumentNotFound
	}

	delete(m.documents, documentID)
	return nil
}

func (m *MemoryStorage) ListDocuments() ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]*model.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		docs = append(docs, doc)
	}

	return docs, nil
}

func (m *MemoryStorage) MarkGenerated(documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.documents[documentID]
	if !exists {
		return ErrDocumentNotFound
	}

	doc.ContentGenerated = true
	doc.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStorage) AddSection(documentID string, section *model.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.documents[documentID]
	if !exists {
		return ErrDocumentNotFound
	}

	doc.Sections = append(doc.Sections, *section)
	doc.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStorage) GetSections(documentID string) ([]*model.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.documents[documentID]
	if !exists {
		return nil, ErrDocumentNotFound
	}

	sections := make([]*model.Section, len(doc.Sections))
	for i := range doc.Sections {
		sections[i] = &doc.Sections[i]
	}

	return sections, nil
}

func (m *MemoryStorage) UpdateSectionFeedback(documentID, sectionID, feedbackType, editedContent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.documents[documentID]
	if !exists {
		return ErrDocumentNotFound
	}

	for i := range doc.Sections {
		if doc.Sections[i].ID == sectionID {
			if editedContent != "" {
				doc.Sections[i].Content = editedContent
			}
			doc.Sections[i].Feedback = feedbackType
			if feedbackType == model.FeedbackRegenerate {
				doc.Sections[i].Status = model.SectionStatusPending
			} else {
				doc.Sections[i].Status = model.SectionStatusCompleted
			}
			doc.UpdatedAt = time.Now()
			return nil
		}
	}

	return ErrSectionNotFound
}
