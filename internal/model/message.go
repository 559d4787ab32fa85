package model

// MessageKind 是持久连接上帧类型的封闭枚举
type MessageKind string

const (
	// 后端 -> 客户端
	KindSectionContent   MessageKind = "section_content"
	KindStreamEnd        MessageKind = "stream_end"
	KindDocumentComplete MessageKind = "document_complete"
	KindTemplateInfo     MessageKind = "template_info"

	// 客户端 -> 后端
	KindInit     MessageKind = "init"
	KindFeedback MessageKind = "feedback"

	// KindAny 是保留的通配类型，订阅后可收到所有解析成功的帧
	KindAny MessageKind = "*"
)

const (
	FeedbackContinue   = "continue"
	FeedbackEdit       = "edit"
	FeedbackRegenerate = "regenerate"
	FeedbackEnd        = "end"
)

// ServerMessage 后端下发的帧，按 type 区分，未用字段留空
type ServerMessage struct {
	Type        MessageKind `json:"type"`
	SectionID   string      `json:"section_id,omitempty"`
	SectionName string      `json:"section_name,omitempty"`
	Content     string      `json:"content,omitempty"`
	IsEditable  *bool       `json:"is_editable,omitempty"` // 显式可编辑标记，缺省时由客户端按模板配置回落
	Template    string      `json:"template,omitempty"`
}

// ClientMessage 客户端上行的帧
type ClientMessage struct {
	Type          MessageKind `json:"type"`
	DocumentID    string      `json:"document_id,omitempty"`
	SectionID     string      `json:"section_id,omitempty"`
	FeedbackType  string      `json:"feedback_type,omitempty"`
	EditedContent string      `json:"edited_content,omitempty"`
}
