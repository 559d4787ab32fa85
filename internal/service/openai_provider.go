package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"docflow-backend/internal/config"
)

const planSystemPrompt = `You are an AI content writer. Generate at least 3 section names for a document based on the query.
Return ONLY a JSON array of strings, for example:
["Introduction to Machine Learning", "Types of Machine Learning Algorithms", "Applications of Machine Learning"]`

const sectionSystemPrompt = `You are an AI content writer. Write detailed HTML content for the given section of a document.
Wrap the section in an outer <div data-section="SectionName">...</div>.
Use <h1>/<h2> for headings, <p> for paragraphs, <ul><li> for lists, <pre><code> for code blocks.
Output only the section currently being generated, nothing else.`

type openAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func newOpenAIProvider(cfg config.OpenAIConfig) *openAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &openAIProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (p *openAIProvider) PlanSections(ctx context.Context, query string) ([]string, error) {
	content, err := p.complete(ctx, planSystemPrompt, fmt.Sprintf("Query: %s", query))
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal([]byte(stripFences(content)), &names); err != nil {
		return nil, fmt.Errorf("failed to parse section plan: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("empty section plan")
	}

	return names, nil
}

func (p *openAIProvider) GenerateSection(ctx context.Context, query, sectionName string) (string, error) {
	user := fmt.Sprintf("Document Query: %s\nSection: %s", query, sectionName)
	content, err := p.complete(ctx, sectionSystemPrompt, user)
	if err != nil {
		return "", err
	}

	return stripFences(content), nil
}

func (p *openAIProvider) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	return resp.Choices[0].Message.Content, nil
}

// 模型偶尔会把输出包在 ```html 围栏里，去掉
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```html", "")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
