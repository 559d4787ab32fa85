package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"docflow-backend/internal/hub"
	"docflow-backend/internal/model"
	"docflow-backend/internal/service"
	"docflow-backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 前端跨域访问，来源校验交给 CORS 中间件
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	hub       *hub.Manager
	generator *service.Generator
}

func NewWSHandler(h *hub.Manager, g *service.Generator) *WSHandler {
	return &WSHandler{
		hub:       h,
		generator: g,
	}
}

// Serve GET /ws/:document_id 升级为 WebSocket 并进入读循环。
// init 帧启动（或重放）生成流程，feedback 帧转投给生成器。
func (h *WSHandler) Serve(c *gin.Context) {
	documentID := c.Param("document_id")
	if documentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 document_id"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("WebSocket 升级失败: %v", err)
		return
	}

	h.hub.Register(documentID, ws)
	logger.Infof("文档 %s 的 WebSocket 已连接", documentID)

	defer func() {
		h.hub.Unregister(documentID, ws)
		ws.Close()
		logger.Infof("文档 %s 的 WebSocket 已断开", documentID)
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf("文档 %s 的连接异常关闭: %v", documentID, err)
			}
			return
		}

		var msg model.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warnf("丢弃无法解析的客户端帧: %v", err)
			continue
		}

		switch msg.Type {
		case model.KindInit:
			h.generator.Start(documentID)
		case model.KindFeedback:
			h.hub.PushFeedback(documentID, msg)
		default:
			logger.Debugf("忽略未知客户端帧类型: %q", msg.Type)
		}
	}
}
