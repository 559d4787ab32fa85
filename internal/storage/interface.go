package storage

import (
	"docflow-backend/internal/model"
)

type Storage interface {
	// 文档管理
	CreateDocument(doc *model.Document) error
	GetDocument(documentID string) (*model.Document, error)
	UpdateDocument(doc *model.Document) error
	DeleteDocument(documentID string) error
	ListDocuments() ([]*model.Document, error)
	MarkGenerated(documentID string) error

	// 章节管理
	AddSection(documentID string, section *model.Section) error
	GetSections(documentID string) ([]*model.Section, error)
	UpdateSectionFeedback(documentID, sectionID, feedbackType, editedContent string) error

	// 存储管理
	Init() error
	Close() error
	Backup() error
}
