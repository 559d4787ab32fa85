package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"docflow-backend/internal/config"
	"docflow-backend/internal/model"
	"docflow-backend/internal/storage"
	"docflow-backend/pkg/logger"
)

type DocumentService struct {
	storage storage.Storage
}

func NewDocumentService(cfg *config.Config) *DocumentService {
	var store storage.Storage

	if cfg.Storage.Type == "disk" {
		store = storage.NewDiskStorage(cfg.Storage.DataDir, cfg.Storage.CacheSize)
	} else {
		store = storage.NewMemoryStorage()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize storage: %v", err)
		store = storage.NewMemoryStorage()
		store.Init()
	}

	return &DocumentService{storage: store}
}

func (s *DocumentService) CreateDocument(userQuery, templateType string) (*model.Document, error) {
	if templateType == "" {
		templateType = "Technical Blog"
	}

	doc := &model.Document{
		ID:           uuid.New().String(),
		UserQuery:    userQuery,
		TemplateType: templateType,
		Sections:     make([]model.Section, 0),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.storage.CreateDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return doc, nil
}

func (s *DocumentService) GetDocument(documentID string) (*model.Document, error) {
	doc, err := s.storage.GetDocument(documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", documentID, err)
	}

	return doc, nil
}

func (s *DocumentService) ListDocuments() ([]*model.Document, error) {
	docs, err := s.storage.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return docs, nil
}

func (s *DocumentService) DeleteDocument(documentID string) error {
	if err := s.storage.DeleteDocument(documentID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}

	return nil
}

// GetStorage 返回存储实例，供生成器共享
func (s *DocumentService) GetStorage() storage.Storage {
	return s.storage
}
