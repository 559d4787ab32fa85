package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"docflow-backend/internal/model"
	"docflow-backend/pkg/logger"
)

const (
	maxReconnectAttempts = 5
	baseReconnectDelay   = 1 * time.Second
	maxReconnectDelay    = 30 * time.Second
)

// Conn 管理到后端的单条持久连接：建连、断线指数退避重连、出站发送。
// 一个实例同一时刻至多持有一条物理连接。
type Conn struct {
	baseURL    string // 例如 ws://localhost:8000
	dispatcher *Dispatcher

	mu             sync.Mutex
	ws             *websocket.Conn
	documentID     string
	attempts       int
	reconnectTimer *time.Timer
	gen            uint64 // 连接代数，用来让过期的读循环安静退出
}

func NewConn(baseURL string, dispatcher *Dispatcher) *Conn {
	return &Conn{
		baseURL:    baseURL,
		dispatcher: dispatcher,
	}
}

func (c *Conn) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Connect 打开到指定文档的连接。已有连接（无论同一文档与否）先关闭，
// 不存在双连接窗口。建连成功后重置重连计数并发送 init 帧。
// dial 期间发生 Disconnect 或更新的 Connect 时，这次 dial 的结果作废，
// 不会把连接重新装上。
func (c *Conn) Connect(documentID string) error {
	c.mu.Lock()
	c.documentID = documentID

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	url := fmt.Sprintf("%s/ws/%s", c.baseURL, documentID)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)

	c.mu.Lock()
	if gen != c.gen {
		// dial 过程中连接状态被换代，丢弃这次结果
		c.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		return ErrNotConnected
	}
	if err != nil {
		logger.Errorf("WebSocket 建连失败: %v", err)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return err
	}

	c.ws = ws
	c.attempts = 0
	c.mu.Unlock()

	logger.Infof("WebSocket 已连接, document=%s", documentID)

	if err := c.Send(model.ClientMessage{
		Type:       model.KindInit,
		DocumentID: documentID,
	}); err != nil {
		logger.Errorf("发送 init 帧失败: %v", err)
	}

	go c.readLoop(ws, gen)

	return nil
}

// Send 序列化并发送一条消息。连接未打开时直接报 ErrNotConnected，
// 不排队也不重发，由调用方决定是否重试。
func (c *Conn) Send(msg model.ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteJSON(msg)
}

func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Disconnect 主动断开：先取消挂起的重连定时器再清理连接状态，
// 避免残留定时器在拆除之后把连接重新拉起来。可重复调用。
func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.gen++
	c.documentID = ""
	c.attempts = 0
}

func (c *Conn) readLoop(ws *websocket.Conn, gen uint64) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if gen == c.gen {
				// 非主动关闭，走重连
				logger.Warnf("WebSocket 连接断开: %v", err)
				c.ws = nil
				c.scheduleReconnectLocked()
			}
			c.mu.Unlock()
			return
		}
		c.dispatcher.Dispatch(data)
	}
}

// 调用方需持有 c.mu
func (c *Conn) scheduleReconnectLocked() {
	if c.attempts >= maxReconnectAttempts {
		logger.Errorf("已达到最大重连次数 %d，放弃重连", maxReconnectAttempts)
		return
	}

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}

	c.attempts++
	delay := backoffDelay(c.attempts)
	logger.Infof("%v 后尝试第 %d 次重连", delay, c.attempts)

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		documentID := c.documentID
		c.mu.Unlock()

		if documentID != "" {
			c.Connect(documentID)
		}
	})
}

// 第 attempt 次重连前的等待时长：min(1s * 2^attempt, 30s)
func backoffDelay(attempt int) time.Duration {
	delay := baseReconnectDelay << uint(attempt)
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}
