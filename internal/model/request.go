package model

// 字段名沿用前端的 camelCase 约定
type GenerateRequest struct {
	UserQuery        string `json:"userQuery" binding:"required"`
	SelectedTemplate string `json:"selectedTemplate" binding:"required"`
}

type GenerateResponse struct {
	DocumentID string `json:"document_id"`
}

type TemplatesResponse struct {
	Templates []string `json:"templates"`
}
