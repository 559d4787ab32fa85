package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"docflow-backend/internal/model"
	"docflow-backend/pkg/logger"
)

type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.Document
	cacheSize int
}

type DocumentIndex struct {
	ID           string    `json:"id"`
	TemplateType string    `json:"template_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.Document),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.loadDocuments(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Info("Disk storage initialized successfully")
	return nil
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "documents"),
		filepath.Join(d.dataDir, "sections"),
		filepath.Join(d.dataDir, "backup"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) loadDocuments() error {
	indexPath := filepath.Join(d.dataDir, "documents.json")

	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return d.saveIndex([]*DocumentIndex{})
	}

	data, err := os.ReadFile(indexPath)
	if err != nil {
		return err
	}

	var indexes []*DocumentIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return err
	}

	for _, index := range indexes {
		if len(d.cache) >= d.cacheSize {
			break
		}

		doc, err := d.loadDocumentFromFile(index.ID)
		if err != nil {
			logger.Errorf("Failed to load document %s: %v", index.ID, err)
			continue
		}

		d.cache[index.ID] = doc
	}

	return nil
}

func (d *DiskStorage) loadDocumentFromFile(documentID string) (*model.Document, error) {
	docPath := filepath.Join(d.dataDir, "documents", documentID+".json")

	data, err := os.ReadFile(docPath)
	if err != nil {
		return nil, err
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	sections, err := d.loadSectionsFromFile(documentID)
	if err != nil {
		logger.Errorf("Failed to load sections for document %s: %v", documentID, err)
		sections = []model.Section{}
	}

	doc.Sections = sections
	return &doc, nil
}

func (d *DiskStorage) loadSectionsFromFile(documentID string) ([]model.Section, error) {
	sectionsPath := filepath.Join(d.dataDir, "sections", documentID+".json")

	if _, err := os.Stat(sectionsPath); os.IsNotExist(err) {
		return []model.Section{}, nil
	}

	data, err := os.ReadFile(sectionsPath)
	if err != nil {
		return nil, err
	}

	var sections []model.Section
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, err
	}

	return sections, nil
}

func (d *DiskStorage) saveDocumentToFile(doc *model.Document) error {
	// 文档元数据和章节分开落盘
	meta := *doc
	meta.Sections = nil

	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	docPath := filepath.Join(d.dataDir, "documents", doc.ID+".json")
	if err := os.WriteFile(docPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	sectionsData, err := json.MarshalIndent(doc.Sections, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	sectionsPath := filepath.Join(d.dataDir, "sections", doc.ID+".json")
	if err := os.WriteFile(sectionsPath, sectionsData, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	return nil
}

func (d *DiskStorage) saveIndex(indexes []*DocumentIndex) error {
	data, err := json.MarshalIndent(indexes, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	indexPath := filepath.Join(d.dataDir, "documents.json")
	if err := os.WriteFile(indexPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	return nil
}

// 调用方需持有写锁
func (d *DiskStorage) rebuildIndexLocked() error {
	entries, err := os.ReadDir(filepath.Join(d.dataDir, "documents"))
	if err != nil {
		return err
	}

	indexes := make([]*DocumentIndex, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-len(".json")]
		doc, ok := d.cache[id]
		if !ok {
			doc, err = d.loadDocumentFromFile(id)
			if err != nil {
				logger.Errorf("Failed to index document %s: %v", id, err)
				continue
			}
		}

		indexes = append(indexes, &DocumentIndex{
			ID:           doc.ID,
			TemplateType: doc.TemplateType,
			CreatedAt:    doc.CreatedAt,
			UpdatedAt:    doc.UpdatedAt,
		})
	}

	sort.Slice(indexes, func(i, j int) bool {
		return indexes[i].CreatedAt.Before(indexes[j].CreatedAt)
	})

	return d.saveIndex(indexes)
}

// 调用方需持有写锁
func (d *DiskStorage) cacheLocked(doc *model.Document) {
	if len(d.cache) >= d.cacheSize {
		// 腾位置：随机淘汰一个（map 遍历顺序即随机）
		for id := range d.cache {
			if id != doc.ID {
				delete(d.cache, id)
				break
			}
		}
	}
	d.cache[doc.ID] = doc
}

func (d *DiskStorage) Close() error {
	return nil
}

func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indexPath := filepath.Join(d.dataDir, "documents.json")
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	backupPath := filepath.Join(d.dataDir, "backup",
		fmt.Sprintf("documents-%s.json", time.Now().Format("20060102-150405")))
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Storage backup written to %s", backupPath)
	return nil
}

func (d *DiskStorage) CreateDocument(doc *model.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.saveDocumentToFile(doc); err != nil {
		return err
	}

	d.cacheLocked(doc)
	return d.rebuildIndexLocked()
}

func (d *DiskStorage) GetDocument(documentID string) (*model.Document, error) {
	d.mu.RLock()
	if doc, ok := d.cache[documentID]; ok {
		d.mu.RUnlock()
		return doc, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	doc, err := d.loadDocumentFromFile(documentID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cacheLocked(doc)
	return doc, nil
}

func (d *DiskStorage) UpdateDocument(doc *model.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	docPath := filepath.Join(d.dataDir, "documents", doc.ID+".json")
	if _, err := os.Stat(docPath); os.IsNotExist(err) {
		return ErrDocumentNotFound
	}

	if err := d.saveDocumentToFile(doc); err != nil {
		return err
	}

	d.cacheLocked(doc)
	return d.rebuildIndexLocked()
}

func (d *DiskStorage) DeleteDocument(documentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	docPath := filepath.Join(d.dataDir, "documents", documentID+".json")
	if _, err := os.Stat(docPath); os.IsNotExist(err) {
		return ErrDocumentNotFound
	}

	if err := os.Remove(docPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	// 章节文件可能不存在，忽略错误
	os.Remove(filepath.Join(d.dataDir, "sections", documentID+".json"))

	delete(d.cache, documentID)
	return d.rebuildIndexLocked()
}

func (d *DiskStorage) ListDocuments() ([]*model.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(d.dataDir, "documents"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	docs := make([]*model.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-len(".json")]
		if doc, ok := d.cache[id]; ok {
			docs = append(docs, doc)
			continue
		}

		doc, err := d.loadDocumentFromFile(id)
		if err != nil {
			logger.Errorf("Failed to load document %s: %v", id, err)
			continue
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})

	return docs, nil
}

func (d *DiskStorage) MarkGenerated(documentID string) error {
	return d.mutateDocument(documentID, func(doc *model.Document) error {
		doc.ContentGenerated = true
		return nil
	})
}

func (d *DiskStorage) AddSection(documentID string, section *model.Section) error {
	return d.mutateDocument(documentID, func(doc *model.Document) error {
		doc.Sections = append(doc.Sections, *section)
		return nil
	})
}

func (d *DiskStorage) GetSections(documentID string) ([]*model.Section, error) {
	doc, err := d.GetDocument(documentID)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	sections := make([]*model.Section, len(doc.Sections))
	for i := range doc.Sections {
		sections[i] = &doc.Sections[i]
	}

	return sections, nil
}

func (d *DiskStorage) UpdateSectionFeedback(documentID, sectionID, feedbackType, editedContent string) error {
	return d.mutateDocument(documentID, func(doc *model.Document) error {
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
				return nil
			}
		}
		return ErrSectionNotFound
	})
}

func (d *DiskStorage) mutateDocument(documentID string, mutate func(doc *model.Document) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.cache[documentID]
	if !ok {
		loaded, err := d.loadDocumentFromFile(documentID)
		if err != nil {
			if os.IsNotExist(err) {
				return ErrDocumentNotFound
			}
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
		doc = loaded
	}

	if err := mutate(doc); err != nil {
		return err
	}

	doc.UpdatedAt = time.Now()
	if err := d.saveDocumentToFile(doc); err != nil {
		return err
	}

	d.cacheLocked(doc)
	return nil
}
