package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docflow-backend/internal/model"
	"docflow-backend/internal/utils"
)

// Client 封装 docflow 后端的 HTTP 接口，给 reviewer 等命令行工具用
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    utils.NewHTTPClient(60 * time.Second),
	}
}

// FetchTemplates 拉取可用模板列表
func (c *Client) FetchTemplates() ([]string, error) {
	resp, err := c.http.Get(c.baseURL + "/templates/")
	if err != nil {
		return nil, fmt.Errorf("请求模板列表失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("模板列表接口返回 %d", resp.StatusCode)
	}

	var out model.TemplatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("解析模板列表失败: %w", err)
	}
	return out.Templates, nil
}

// CreateDocument 创建文档，返回用于建立 WebSocket 的文档 ID
func (c *Client) CreateDocument(userQuery, templateName string) (string, error) {
	body, err := json.Marshal(model.GenerateRequest{
		UserQuery:        userQuery,
		SelectedTemplate: templateName,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.http.Post(c.baseURL+"/generate/", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建文档请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("创建文档接口返回 %d: %s", resp.StatusCode, string(data))
	}

	var out model.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("解析创建文档响应失败: %w", err)
	}
	if out.DocumentID == "" {
		return "", fmt.Errorf("创建文档响应缺少 document_id")
	}
	return out.DocumentID, nil
}
