package template

// SectionPlan 模板中一个预定义章节及其可编辑性
type SectionPlan struct {
	Name     string
	Editable bool
}

// 模板目录：生成器按这里的顺序逐段产出
var catalog = map[string][]SectionPlan{
	"Technical Blog": {
		{Name: "Title", Editable: false},
		{Name: "Introduction", Editable: true},
		{Name: "Background", Editable: true},
		{Name: "Key Features", Editable: true},
		{Name: "Use Cases", Editable: true},
		{Name: "Conclusion", Editable: true},
	},
	"Documentation": {
		{Name: "Heading", Editable: false},
		{Name: "Overview", Editable: true},
		{Name: "Installation", Editable: true},
		{Name: "Usage", Editable: true},
		{Name: "Configuration", Editable: true},
		{Name: "Troubleshooting", Editable: true},
		{Name: "FAQ", Editable: true},
	},
	"Case Study": {
		{Name: "Company Background", Editable: false},
		{Name: "Problem Statement", Editable: true},
		{Name: "Solution Implemented", Editable: true},
		{Name: "Results Achieved", Editable: true},
		{Name: "Lessons Learned", Editable: true},
	},
}

// 客户端回落表：后端没给 is_editable 时按模板名+章节名查询。
// 与 catalog 并非同一份数据，前端历史上多带了几个章节，原样保留。
var editableConfig = map[string]map[string]bool{
	"Technical Blog": {
		"Title":        false,
		"Introduction": true,
		"Background":   true,
		"Key Features": true,
		"Use Cases":    true,
		"Summary":      true,
		"Conclusion":   true,
	},
	"Documentation": {
		"Heading":         false,
		"Subheading":      false,
		"Overview":        true,
		"Installation":    true,
		"Usage":           true,
		"Configuration":   true,
		"Troubleshooting": true,
		"FAQ":             true,
	},
	"Case Study": {
		"Company Background":   false,
		"Problem Statement":    true,
		"Solution Implemented": true,
		"Results Achieved":     true,
		"Lessons Learned":      true,
	},
}

// Names 返回模板列表，顺序固定
func Names() []string {
	return []string{"Technical Blog", "Documentation", "Case Study"}
}

func IsKnown(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Sections 返回模板的章节计划，未知模板返回 nil
func Sections(name string) []SectionPlan {
	return catalog[name]
}

// IsSectionEditable 纯查表：模板未知或章节未知一律默认可编辑
func IsSectionEditable(templateName, sectionName string) bool {
	sections, ok := editableConfig[templateName]
	if !ok {
		return true
	}
	editable, ok := sections[sectionName]
	if !ok {
		return true
	}
	return editable
}
