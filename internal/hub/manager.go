package hub

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"docflow-backend/internal/model"
	"docflow-backend/pkg/logger"
)

var ErrNoConnection = errors.New("no active connection for document")

// 每个文档的反馈通道容量。写满说明生成器没在消费，多余的帧丢弃
const feedbackBuffer = 16

type connection struct {
	ws *websocket.Conn
	mu sync.Mutex // gorilla 的写不允许并发
}

func (c *connection) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Manager 维护文档到活跃连接的映射，并把客户端的 feedback 帧
// 转投给等待中的生成器。每个文档同时只保留一条连接。
type Manager struct {
	mu       sync.Mutex
	conns    map[string]*connection
	feedback map[string]chan model.ClientMessage
}

func NewManager() *Manager {
	return &Manager{
		conns:    make(map[string]*connection),
		feedback: make(map[string]chan model.ClientMessage),
	}
}

// Register 绑定文档的活跃连接，同一文档的旧连接被挤掉并关闭
func (m *Manager) Register(documentID string, ws *websocket.Conn) {
	m.mu.Lock()
	old := m.conns[documentID]
	m.conns[documentID] = &connection{ws: ws}
	m.mu.Unlock()

	if old != nil {
		logger.Warnf("文档 %s 已有连接，替换为新连接", documentID)
		old.ws.Close()
	}
}

// Unregister 解除绑定。传入的 ws 不再是当前连接时为空操作，
// 避免被挤掉的旧连接顺手注销新连接。
func (m *Manager) Unregister(documentID string, ws *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.conns[documentID]; ok && cur.ws == ws {
		delete(m.conns, documentID)
	}
}

// Send 把帧发给文档的当前连接
func (m *Manager) Send(documentID string, msg model.ServerMessage) error {
	m.mu.Lock()
	conn, ok := m.conns[documentID]
	m.mu.Unlock()

	if !ok {
		return ErrNoConnection
	}
	return conn.writeJSON(msg)
}

// Feedback 返回文档的反馈通道，生成器从这里取用户反馈
func (m *Manager) Feedback(documentID string) <-chan model.ClientMessage {
	return m.feedbackChan(documentID)
}

// PushFeedback 投递一条客户端反馈，通道满时丢弃并记日志，
// 绝不阻塞连接的读循环
func (m *Manager) PushFeedback(documentID string, msg model.ClientMessage) {
	ch := m.feedbackChan(documentID)
	select {
	case ch <- msg:
	default:
		logger.Warnf("文档 %s 的反馈通道已满，丢弃 %s 反馈", documentID, msg.FeedbackType)
	}
}

// ReleaseFeedback 生成流程结束后释放文档的反馈通道，
// 连同里面还没被消费的帧一起丢弃
func (m *Manager) ReleaseFeedback(documentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.feedback, documentID)
}

func (m *Manager) feedbackChan(documentID string) chan model.ClientMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.feedback[documentID]
	if !ok {
		ch = make(chan model.ClientMessage, feedbackBuffer)
		m.feedback[documentID] = ch
	}
	return ch
}
