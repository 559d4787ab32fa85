package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/model"
	"docflow-backend/internal/service"
	"docflow-backend/internal/storage"
	"docflow-backend/internal/template"
	"docflow-backend/pkg/logger"
)

type DocumentHandler struct {
	docService *service.DocumentService
}

func NewDocumentHandler(docService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
	}
}

// ListTemplates GET /templates/
func (h *DocumentHandler) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, model.TemplatesResponse{Templates: template.Names()})
}

// CreateDocument POST /generate/ 创建文档并返回 document_id，
// 生成流程在 WebSocket 连上并发出 init 帧后才启动
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserQuery == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userQuery 不能为空"})
		return
	}

	doc, err := h.docService.CreateDocument(req.UserQuery, req.SelectedTemplate)
	if err != nil {
		logger.Errorf("创建文档失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建文档失败"})
		return
	}

	logger.Infof("创建文档 %s (模板: %s)", doc.ID, doc.TemplateType)
	c.JSON(http.StatusOK, model.GenerateResponse{DocumentID: doc.ID})
}

// GetDocument GET /documents/:document_id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, err := h.docService.GetDocument(c.Param("document_id"))
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		logger.Errorf("读取文档失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取文档失败"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// ListDocuments GET /documents/
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	docs, err := h.docService.ListDocuments()
	if err != nil {
		logger.Errorf("读取文档列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取文档列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// DeleteDocument DELETE /documents/:document_id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	if err := h.docService.DeleteDocument(c.Param("document_id")); err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
			return
		}
		logger.Errorf("删除文档失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除文档失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}
