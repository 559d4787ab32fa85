package service

import "context"

// Provider 章节内容的生成后端
type Provider interface {
	// PlanSections 在模板没有预定义章节时规划章节名
	PlanSections(ctx context.Context, query string) ([]string, error)
	// GenerateSection 生成单个章节的 HTML 内容
	GenerateSection(ctx context.Context, query, sectionName string) (string, error)
}

// 规划失败时的兜底章节
var defaultSectionNames = []string{"Introduction", "Main Content", "Conclusion"}
