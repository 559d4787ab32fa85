package model

import "time"

const (
	SectionStatusPending   = "pending"
	SectionStatusCompleted = "completed"
)

type Document struct {
	ID               string    `json:"id"`
	UserQuery        string    `json:"user_query"`
	TemplateType     string    `json:"template_type"`
	ContentGenerated bool      `json:"content_generated"`
	Sections         []Section `json:"sections"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Section struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	Feedback   string    `json:"feedback,omitempty"`
	Status     string    `json:"status"`
	IsEditable bool      `json:"is_editable"`
	CreatedAt  time.Time `json:"created_at"`
}
