package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow-backend/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsPair 建一对真实的 WebSocket 连接，返回服务端侧和客户端侧
func wsPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	serverSide := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
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

func TestManagerSend(t *testing.T) {
	server, client := wsPair(t)

	m := NewManager()
	m.Register("doc-1", server)

	require.NoError(t, m.Send("doc-1", model.ServerMessage{
		Type:        model.KindSectionContent,
		SectionID:   "s1",
		SectionName: "Introduction",
		Content:     "<p>hi</p>",
	}))

	var got model.ServerMessage
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, model.KindSectionContent, got.Type)
	assert.Equal(t, "s1", got.SectionID)
}

func TestManagerSendWithoutConnection(t *testing.T) {
	m := NewManager()

	err := m.Send("doc-1", model.ServerMessage{Type: model.KindStreamEnd})

	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestManagerRegisterReplacesOldConnection(t *testing.T) {
	oldServer, oldClient := wsPair(t)
	newServer, newClient := wsPair(t)

	m := NewManager()
	m.Register("doc-1", oldServer)
	m.Register("doc-1", newServer)

	require.NoError(t, m.Send("doc-1", model.ServerMessage{Type: model.KindStreamEnd}))

	var got model.ServerMessage
	require.NoError(t, newClient.ReadJSON(&got))
	assert.Equal(t, model.KindStreamEnd, got.Type)

	// 旧连接已被关闭
	oldClient.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := oldClient.ReadMessage()
	assert.Error(t, err)
}

func TestManagerUnregisterOnlyCurrent(t *testing.T) {
	oldServer, _ := wsPair(t)
	newServer, newClient := wsPair(t)

	m := NewManager()
	m.Register("doc-1", oldServer)
	m.Register("doc-1", newServer)

	// 被挤掉的旧连接注销不影响新连接
	m.Unregister("doc-1", oldServer)
	require.NoError(t, m.Send("doc-1", model.ServerMessage{Type: model.KindStreamEnd}))

	var got model.ServerMessage
	require.NoError(t, newClient.ReadJSON(&got))
	assert.Equal(t, model.KindStreamEnd, got.Type)

	m.Unregister("doc-1", newServer)
	assert.ErrorIs(t, m.Send("doc-1", model.ServerMessage{Type: model.KindStreamEnd}), ErrNoConnection)
}

func TestManagerFeedbackRoundTrip(t *testing.T) {
	m := NewManager()

	m.PushFeedback("doc-1", model.ClientMessage{
		Type:         model.KindFeedback,
		SectionID:    "s1",
		FeedbackType: model.FeedbackContinue,
	})

	select {
	case msg := <-m.Feedback("doc-1"):
		assert.Equal(t, "s1", msg.SectionID)
		assert.Equal(t, model.FeedbackContinue, msg.FeedbackType)
	case <-time.After(time.Second):
		t.Fatal("没有收到反馈")
	}
}

func TestManagerFeedbackIsolatedPerDocument(t *testing.T) {
	m := NewManager()

	m.PushFeedback("doc-1", model.ClientMessage{SectionID: "s1"})

	select {
	case <-m.Feedback("doc-2"):
		t.Fatal("反馈串到了别的文档")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManagerReleaseFeedback(t *testing.T) {
	m := NewManager()

	m.PushFeedback("doc-1", model.ClientMessage{SectionID: "s1"})
	m.ReleaseFeedback("doc-1")

	// 释放后通道重建，残留的旧帧不会被读到
	select {
	case msg := <-m.Feedback("doc-1"):
		t.Fatalf("释放后读到了残留反馈: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}

	// 释放之后照常可以继续投递
	m.PushFeedback("doc-1", model.ClientMessage{SectionID: "s2"})
	select {
	case msg := <-m.Feedback("doc-1"):
		assert.Equal(t, "s2", msg.SectionID)
	case <-time.After(time.Second):
		t.Fatal("释放后的反馈没有送达")
	}
}

func TestManagerFeedbackDropsWhenFull(t *testing.T) {
	m := NewManager()

	// 写满之后继续投递不能阻塞
	done := make(chan struct{})
	go func() {
		for i := 0; i < feedbackBuffer+5; i++ {
			m.PushFeedback("doc-1", model.ClientMessage{SectionID: "s1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PushFeedback 阻塞了")
	}
}
