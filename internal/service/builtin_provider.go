package service

import (
	"context"
	"fmt"
	"strings"
)

// builtinProvider 不依赖外部模型的确定性生成器，
// 没有 API Key 时让整条链路照常可用，也是测试用的后端
type builtinProvider struct{}

func newBuiltinProvider() *builtinProvider {
	return &builtinProvider{}
}

func (p *builtinProvider) PlanSections(ctx context.Context, query string) ([]string, error) {
	return defaultSectionNames, nil
}

func (p *builtinProvider) GenerateSection(ctx context.Context, query, sectionName string) (string, error) {
	lower := strings.ToLower(sectionName)

	var body string
	switch {
	case lower == "title" || lower == "heading":
		body = fmt.Sprintf("<h1>%s</h1>", query)
	case strings.Contains(lower, "code"):
		body = fmt.Sprintf("<h3>%s</h3><pre><code>// example for: %s</code></pre>", sectionName, query)
	default:
		body = fmt.Sprintf("<h2>%s</h2><p>This section covers %s in the context of: %s.</p>",
			sectionName, strings.ToLower(sectionName), query)
	}

	return fmt.Sprintf("<div data-section=%q>%s</div>", sectionName, body), nil
}
