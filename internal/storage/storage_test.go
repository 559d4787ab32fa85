package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow-backend/internal/model"
)

// 两种实现共用同一组行为测试
func storageImpls(t *testing.T) map[string]Storage {
	t.Helper()

	disk := NewDiskStorage(t.TempDir(), 10)
	require.NoError(t, disk.Init())

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"disk":   disk,
	}
}

func newDoc(id string) *model.Document {
	now := time.Now()
	return &model.Document{
		ID:           id,
		UserQuery:    "write about goroutines",
		TemplateType: "Technical Blog",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStorageDocumentLifecycle(t *testing.T) {
	for name, store := range storageImpls(t) {
		t.Run(name, func(t *testing.T) {
			doc := newDoc("d1")
			require.NoError(t, store.CreateDocument(doc))

			got, err := store.GetDocument("d1")
			require.NoError(t, err)
			assert.Equal(t, "write about goroutines", got.UserQuery)
			assert.Equal(t, "Technical Blog", got.TemplateType)
			assert.False(t, got.ContentGenerated)

			docs, err := store.ListDocuments()
			require.NoError(t, err)
			assert.Len(t, docs, 1)

			require.NoError(t, store.DeleteDocument("d1"))
			_, err = store.GetDocument("d1")
			assert.ErrorIs(t, err, ErrDocumentNotFound)
		})
	}
}

func TestStorageNotFoundErrors(t *testing.T) {
	for name, store := range storageImpls(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetDocument("missing")
			assert.ErrorIs(t, err, ErrDocumentNotFound)

			assert.ErrorIs(t, store.DeleteDocument("missing"), ErrDocumentNotFound)
			assert.ErrorIs(t, store.MarkGenerated("missing"), ErrDocumentNotFound)
			assert.ErrorIs(t, store.AddSection("missing", &model.Section{ID: "s1"}), ErrDocumentNotFound)
		})
	}
}

func TestStorageMarkGenerated(t *testing.T) {
	for name, store := range storageImpls(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.CreateDocument(newDoc("d1")))
			require.NoError(t, store.MarkGenerated("d1"))

			got, err := store.GetDocument("d1")
			require.NoError(t, err)
			assert.True(t, got.ContentGenerated)
		})
	}
}

func TestStorageSections(t *testing.T) {
	for name, store := range storageImpls(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.CreateDocument(newDoc("d1")))

			require.NoError(t, store.AddSection("d1", &model.Section{
				ID: "s1", DocumentID: "d1", Name: "Introduction",
				Content: "<p>a</p>", Status: model.SectionStatusPending, IsEditable: true,
			}))
			require.NoError(t, store.AddSection("d1", &model.Section{
				ID: "s2", DocumentID: "d1", Name: "Conclusion",
				Content: "<p>b</p>", Status: model.SectionStatusPending, IsEditable: true,
			}))

			sections, err := store.GetSections("d1")
			require.NoError(t, err)
			require.Len(t, sections, 2)
			assert.Equal(t, "Introduction", sections[0].Name)
			assert.Equal(t, "Conclusion", sections[1].Name)
		})
	}
}

func TestStorageUpdateSectionFeedback(t *testing.T) {
	for name, store := range storageImpls(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.CreateDocument(newDoc("d1")))
			require.NoError(t, store.AddSection("d1", &model.Section{
				ID: "s1", DocumentID: "d1", Name: "Introduction",
				Content: "<p>a</p>", Status: model.SectionStatusPending,
			}))

			// continue 反馈：状态完成，内容不变
			require.NoError(t, store.UpdateSectionFeedback("d1", "s1", model.FeedbackContinue, ""))
			sections, err := store.GetSections("d1")
			require.NoError(t, err)
			assert.Equal(t, model.SectionStatusCompleted, sections[0].Status)
			assert.Equal(t, "<p>a</p>", sections[0].Content)

			// edit 反馈：内容被替换
			require.NoError(t, store.UpdateSectionFeedback("d1", "s1", model.FeedbackEdit, "<p>edited</p>"))
			sections, err = store.GetSections("d1")
			require.NoError(t, err)
			assert.Equal(t, "<p>edited</p>", sections[0].Content)

			// regenerate 反馈：状态回到 pending
			require.NoError(t, store.UpdateSectionFeedback("d1", "s1", model.FeedbackRegenerate, ""))
			sections, err = store.GetSections("d1")
			require.NoError(t, err)
			assert.Equal(t, model.SectionStatusPending, sections[0].Status)

			assert.ErrorIs(t, store.UpdateSectionFeedback("d1", "missing", model.FeedbackContinue, ""), ErrSectionNotFound)
		})
	}
}

func TestDiskStorageSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store := NewDiskStorage(dir, 10)
	require.NoError(t, store.Init())
	require.NoError(t, store.CreateDocument(newDoc("d1")))
	require.NoError(t, store.AddSection("d1", &model.Section{
		ID: "s1", DocumentID: "d1", Name: "Introduction", Content: "<p>a</p>",
	}))
	require.NoError(t, store.MarkGenerated("d1"))
	require.NoError(t, store.Close())

	// 新实例从磁盘恢复
	reopened := NewDiskStorage(dir, 10)
	require.NoError(t, reopened.Init())

	doc, err := reopened.GetDocument("d1")
	require.NoError(t, err)
	assert.True(t, doc.ContentGenerated)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Introduction", doc.Sections[0].Name)
}

func TestDiskStorageCacheEviction(t *testing.T) {
	store := NewDiskStorage(t.TempDir(), 2)
	require.NoError(t, store.Init())

	require.NoError(t, store.CreateDocument(newDoc("d1")))
	require.NoError(t, store.CreateDocument(newDoc("d2")))
	require.NoError(t, store.CreateDocument(newDoc("d3")))

	// 缓存被挤掉的文档仍能从磁盘读回
	for _, id := range []string{"d1", "d2", "d3"} {
		doc, err := store.GetDocument(id)
		require.NoError(t, err)
		assert.Equal(t, id, doc.ID)
	}

	docs, err := store.ListDocuments()
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestDiskStorageBackup(t *testing.T) {
	store := NewDiskStorage(t.TempDir(), 10)
	require.NoError(t, store.Init())
	require.NoError(t, store.CreateDocument(newDoc("d1")))

	assert.NoError(t, store.Backup())
}
