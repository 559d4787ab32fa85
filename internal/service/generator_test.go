package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow-backend/internal/config"
	"docflow-backend/internal/hub"
	"docflow-backend/internal/model"
	"docflow-backend/internal/storage"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	serverSide := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverSide <- ws
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientSide, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientSide.Close() })

	server := <-serverSide
	t.Cleanup(func() { server.Close() })
	return server, clientSide
}

func testGeneratorEnv(t *testing.T, templateType string) (*Generator, *hub.Manager, storage.Storage, string, *websocket.Conn) {
	t.Helper()

	store := storage.NewMemoryStorage()
	require.NoError(t, store.Init())

	doc := &model.Document{
		ID:           "doc-1",
		UserQuery:    "write about goroutines",
		TemplateType: templateType,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, store.CreateDocument(doc))

	m := hub.NewManager()
	server, client := wsPair(t)
	m.Register(doc.ID, server)

	cfg := &config.Config{
		Generator: config.GeneratorConfig{
			Provider:        "builtin",
			FeedbackTimeout: 5 * time.Second,
		},
	}
	g := NewGenerator(cfg, store, m)

	return g, m, store, doc.ID, client
}

func readFrame(t *testing.T, ws *websocket.Conn) model.ServerMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg model.ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestGeneratorFullRun(t *testing.T) {
	g, m, store, docID, client := testGeneratorEnv(t, "Case Study")
	g.Start(docID)

	plans := []struct {
		name     string
		editable bool
	}{
		{"Company Background", false},
		{"Problem Statement", true},
		{"Solution Implemented", true},
		{"Results Achieved", true},
		{"Lessons Learned", true},
	}

	for i, plan := range plans {
		frame := readFrame(t, client)
		require.Equal(t, model.KindSectionContent, frame.Type)
		assert.Equal(t, plan.name, frame.SectionName)
		assert.NotEmpty(t, frame.SectionID)
		assert.Contains(t, frame.Content, "data-section")

		require.NotNil(t, frame.IsEditable)
		assert.Equal(t, plan.editable, *frame.IsEditable)

		// 只有第一帧携带模板名
		if i == 0 {
			assert.Equal(t, "Case Study", frame.Template)
		} else {
			assert.Empty(t, frame.Template)
		}

		m.PushFeedback(docID, model.ClientMessage{
			Type:         model.KindFeedback,
			SectionID:    frame.SectionID,
			FeedbackType: model.FeedbackContinue,
		})
	}

	assert.Equal(t, model.KindStreamEnd, readFrame(t, client).Type)
	assert.Equal(t, model.KindDocumentComplete, readFrame(t, client).Type)

	doc, err := store.GetDocument(docID)
	require.NoError(t, err)
	assert.True(t, doc.ContentGenerated)
	assert.Len(t, doc.Sections, len(plans))
}

func TestGeneratorEndCutsRunShort(t *testing.T) {
	g, m, store, docID, client := testGeneratorEnv(t, "Case Study")
	g.Start(docID)

	frame := readFrame(t, client)
	require.Equal(t, model.KindSectionContent, frame.Type)

	m.PushFeedback(docID, model.ClientMessage{
		Type:         model.KindFeedback,
		FeedbackType: model.FeedbackEnd,
	})

	assert.Equal(t, model.KindStreamEnd, readFrame(t, client).Type)
	assert.Equal(t, model.KindDocumentComplete, readFrame(t, client).Type)

	doc, err := store.GetDocument(docID)
	require.NoError(t, err)
	assert.True(t, doc.ContentGenerated)
	assert.Len(t, doc.Sections, 1)
}

func TestGeneratorRegenerateRepeatsSection(t *testing.T) {
	g, m, _, docID, client := testGeneratorEnv(t, "Case Study")
	g.Start(docID)

	first := readFrame(t, client)
	require.Equal(t, "Company Background", first.SectionName)

	m.PushFeedback(docID, model.ClientMessage{
		Type:         model.KindFeedback,
		SectionID:    first.SectionID,
		FeedbackType: model.FeedbackRegenerate,
	})

	// 同一章节重新生成，拿到新的 section id
	second := readFrame(t, client)
	assert.Equal(t, "Company Background", second.SectionName)
	assert.NotEqual(t, first.SectionID, second.SectionID)

	m.PushFeedback(docID, model.ClientMessage{
		Type:         model.KindFeedback,
		FeedbackType: model.FeedbackEnd,
	})
	assert.Equal(t, model.KindStreamEnd, readFrame(t, client).Type)
}

func TestGeneratorEditUpdatesStoredSection(t *testing.T) {
	g, m, store, docID, client := testGeneratorEnv(t, "Case Study")
	g.Start(docID)

	frame := readFrame(t, client)

	m.PushFeedback(docID, model.ClientMessage{
		Type:          model.KindFeedback,
		SectionID:     frame.SectionID,
		FeedbackType:  model.FeedbackEdit,
		EditedContent: "<p>edited</p>",
	})
	// edit 不放行下一段，跟一个 continue 收尾
	m.PushFeedback(docID, model.ClientMessage{
		Type:         model.KindFeedback,
		SectionID:    frame.SectionID,
		FeedbackType: model.FeedbackContinue,
	})

	// 下一段到达说明 continue 被消费
	next := readFrame(t, client)
	assert.Equal(t, "Problem Statement", next.SectionName)

	sections, err := store.GetSections(docID)
	require.NoError(t, err)
	assert.Equal(t, "<p>edited</p>", sections[0].Content)

	m.PushFeedback(docID, model.ClientMessage{
		Type:         model.KindFeedback,
		FeedbackType: model.FeedbackEnd,
	})
}

func TestGeneratorReplaysGeneratedDocument(t *testing.T) {
	g, _, store, docID, client := testGeneratorEnv(t, "Case Study")

	require.NoError(t, store.AddSection(docID, &model.Section{
		ID: "s1", DocumentID: docID, Name: "Company Background",
		Content: "<p>stored</p>", IsEditable: false,
	}))
	require.NoError(t, store.AddSection(docID, &model.Section{
		ID: "s2", DocumentID: docID, Name: "Problem Statement",
		Content: "<p>stored2</p>", IsEditable: true,
	}))
	require.NoError(t, store.MarkGenerated(docID))

	g.Start(docID)

	first := readFrame(t, client)
	assert.Equal(t, model.KindSectionContent, first.Type)
	assert.Equal(t, "s1", first.SectionID)
	assert.Equal(t, "<p>stored</p>", first.Content)
	assert.Equal(t, "Case Study", first.Template)
	require.NotNil(t, first.IsEditable)
	assert.False(t, *first.IsEditable)

	second := readFrame(t, client)
	assert.Equal(t, "s2", second.SectionID)

	assert.Equal(t, model.KindStreamEnd, readFrame(t, client).Type)
	assert.Equal(t, model.KindDocumentComplete, readFrame(t, client).Type)
}

func TestGeneratorPlansUnknownTemplate(t *testing.T) {
	g, m, _, docID, client := testGeneratorEnv(t, "Freestyle")
	g.Start(docID)

	// 未知模板走 provider 规划，builtin 给出兜底章节
	for _, want := range []string{"Introduction", "Main Content", "Conclusion"} {
		frame := readFrame(t, client)
		assert.Equal(t, want, frame.SectionName)
		m.PushFeedback(docID, model.ClientMessage{
			Type:         model.KindFeedback,
			SectionID:    frame.SectionID,
			FeedbackType: model.FeedbackContinue,
		})
	}

	assert.Equal(t, model.KindStreamEnd, readFrame(t, client).Type)
}

func TestGeneratorStartIsIdempotent(t *testing.T) {
	g, m, _, docID, client := testGeneratorEnv(t, "Case Study")

	g.Start(docID)
	g.Start(docID)

	frame := readFrame(t, client)
	assert.Equal(t, "Company Background", frame.SectionName)

	// 重复 Start 没有起第二个流程，下一帧必须在反馈之后才出现
	client.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var extra model.ServerMessage
	assert.Error(t, client.ReadJSON(&extra))

	m.PushFeedback(docID, model.ClientMessage{
		Type:         model.KindFeedback,
		FeedbackType: model.FeedbackEnd,
	})
}

func TestIsLockedName(t *testing.T) {
	assert.True(t, isLockedName("Code Examples"))
	assert.True(t, isLockedName("Installation and Setup"))
	assert.True(t, isLockedName("API Reference"))
	assert.True(t, isLockedName("Technical Details"))
	assert.False(t, isLockedName("Introduction"))
	assert.False(t, isLockedName("Lessons Learned"))
}
