package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docflow-backend/internal/config"
	"docflow-backend/internal/hub"
	"docflow-backend/internal/model"
	"docflow-backend/internal/storage"
	"docflow-backend/internal/template"
	"docflow-backend/pkg/logger"
)

// 规划出的章节名命中这些关键词时锁定编辑（模板没给出可编辑性的场合）
var lockedKeywords = []string{"code", "configuration", "installation", "setup", "technical", "api reference"}

// Generator 驱动一个文档的生成流程：规划章节 -> 逐段生成并下发 ->
// 等待用户反馈 -> 放行下一段/重新生成，最后发 stream_end 和 document_complete。
// 每个文档同时只跑一个流程。
type Generator struct {
	store    storage.Storage
	hub      *hub.Manager
	provider Provider

	sectionDelay    time.Duration
	feedbackTimeout time.Duration

	mu      sync.Mutex
	running map[string]bool
}

func NewGenerator(cfg *config.Config, store storage.Storage, h *hub.Manager) *Generator {
	var provider Provider
	if cfg.Generator.Provider == "openai" {
		provider = newOpenAIProvider(cfg.OpenAI)
	} else {
		provider = newBuiltinProvider()
	}

	timeout := cfg.Generator.FeedbackTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &Generator{
		store:           store,
		hub:             h,
		provider:        provider,
		sectionDelay:    cfg.Generator.SectionDelay,
		feedbackTimeout: timeout,
	}
}

// Start 收到 init 帧时调用。同一文档的流程已在跑则忽略。
func (g *Generator) Start(documentID string) {
	g.mu.Lock()
	if g.running == nil {
		g.running = make(map[string]bool)
	}
	if g.running[documentID] {
		g.mu.Unlock()
		logger.Debugf("文档 %s 的生成流程已在运行", documentID)
		return
	}
	g.running[documentID] = true
	g.mu.Unlock()

	go func() {
		defer func() {
			g.hub.ReleaseFeedback(documentID)
			g.mu.Lock()
			delete(g.running, documentID)
			g.mu.Unlock()
		}()
		g.run(documentID)
	}()
}

func (g *Generator) run(documentID string) {
	doc, err := g.store.GetDocument(documentID)
	if err != nil {
		logger.Errorf("生成流程找不到文档 %s: %v", documentID, err)
		return
	}

	// 已生成过的文档：重放存量章节，不再触发生成
	if doc.ContentGenerated {
		g.replay(doc)
		return
	}

	plans := g.planSections(doc)
	logger.Infof("文档 %s 规划了 %d 个章节", documentID, len(plans))

	templateSent := false
	finished := false

	for i := 0; i < len(plans) && !finished; {
		plan := plans[i]

		section, err := g.generateSection(doc, plan)
		if err != nil {
			// 与其中断流程，不如给一段占位内容让用户继续往下走
			logger.Errorf("章节 %q 生成失败: %v", plan.Name, err)
			section.Content = fmt.Sprintf("<div data-section=%q><p>Error generating content. Please try again.</p></div>", plan.Name)
		}

		if err := g.store.AddSection(documentID, &section); err != nil {
			logger.Errorf("章节落盘失败: %v", err)
		}

		frame := model.ServerMessage{
			Type:        model.KindSectionContent,
			SectionID:   section.ID,
			SectionName: section.Name,
			Content:     section.Content,
			IsEditable:  &plan.Editable,
		}
		if !templateSent {
			frame.Template = doc.TemplateType
			templateSent = true
		}
		if err := g.hub.Send(documentID, frame); err != nil {
			logger.Warnf("下发章节 %q 失败: %v", section.Name, err)
		}

		decision := g.waitFeedback(documentID, section.ID)
		switch decision {
		case model.FeedbackContinue:
			i++
		case model.FeedbackRegenerate:
			// 同一计划位重新生成，不前进
		case model.FeedbackEnd:
			finished = true
		}
	}

	// 先落盘再通知，客户端收到 document_complete 时状态已持久化
	if err := g.store.MarkGenerated(documentID); err != nil {
		logger.Errorf("标记文档 %s 已生成失败: %v", documentID, err)
	}

	if err := g.hub.Send(documentID, model.ServerMessage{Type: model.KindStreamEnd}); err != nil {
		logger.Warnf("下发 stream_end 失败: %v", err)
	}
	if err := g.hub.Send(documentID, model.ServerMessage{Type: model.KindDocumentComplete}); err != nil {
		logger.Warnf("下发 document_complete 失败: %v", err)
	}
	logger.Infof("文档 %s 生成完成", documentID)
}

// waitFeedback 等当前章节的终局反馈。edit 是后台修正：
// 更新存量内容后继续等，不放行下一段。超时按 end 处理。
func (g *Generator) waitFeedback(documentID, sectionID string) string {
	deadline := time.NewTimer(g.feedbackTimeout)
	defer deadline.Stop()

	for {
		select {
		case msg := <-g.hub.Feedback(documentID):
			if msg.FeedbackType == model.FeedbackEnd {
				return model.FeedbackEnd
			}
			if msg.SectionID != sectionID {
				// 对历史章节的后台修正
				if msg.FeedbackType == model.FeedbackEdit {
					g.applyEdit(documentID, msg)
				} else {
					logger.Debugf("忽略过期反馈: %s -> %s", msg.FeedbackType, msg.SectionID)
				}
				continue
			}

			switch msg.FeedbackType {
			case model.FeedbackContinue:
				if err := g.store.UpdateSectionFeedback(documentID, sectionID, model.FeedbackContinue, ""); err != nil {
					logger.Errorf("记录 continue 反馈失败: %v", err)
				}
				return model.FeedbackContinue
			case model.FeedbackEdit:
				g.applyEdit(documentID, msg)
			case model.FeedbackRegenerate:
				if err := g.store.UpdateSectionFeedback(documentID, sectionID, model.FeedbackRegenerate, ""); err != nil {
					logger.Errorf("记录 regenerate 反馈失败: %v", err)
				}
				return model.FeedbackRegenerate
			default:
				logger.Warnf("未知反馈类型: %q", msg.FeedbackType)
			}

		case <-deadline.C:
			logger.Warnf("等待文档 %s 反馈超时，提前结束", documentID)
			return model.FeedbackEnd
		}
	}
}

func (g *Generator) applyEdit(documentID string, msg model.ClientMessage) {
	if err := g.store.UpdateSectionFeedback(documentID, msg.SectionID, model.FeedbackEdit, msg.EditedContent); err != nil {
		logger.Errorf("应用 edit 反馈失败: %v", err)
	}
}

// planSections 模板有预定义章节就用模板的，否则让 provider 规划，
// 规划失败回落到兜底章节。规划出的章节按关键词决定可编辑性。
func (g *Generator) planSections(doc *model.Document) []template.SectionPlan {
	if template.IsKnown(doc.TemplateType) {
		return template.Sections(doc.TemplateType)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	names, err := g.provider.PlanSections(ctx, doc.UserQuery)
	if err != nil || len(names) == 0 {
		logger.Warnf("章节规划失败(%v)，使用兜底章节", err)
		names = defaultSectionNames
	}

	plans := make([]template.SectionPlan, len(names))
	for i, name := range names {
		plans[i] = template.SectionPlan{
			Name:     name,
			Editable: !isLockedName(name),
		}
	}
	return plans
}

func (g *Generator) generateSection(doc *model.Document, plan template.SectionPlan) (model.Section, error) {
	section := model.Section{
		ID:         "temp-" + uuid.New().String(),
		DocumentID: doc.ID,
		Name:       plan.Name,
		Status:     model.SectionStatusPending,
		IsEditable: plan.Editable,
		CreatedAt:  time.Now(),
	}

	if g.sectionDelay > 0 {
		time.Sleep(g.sectionDelay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	content, err := g.provider.GenerateSection(ctx, doc.UserQuery, plan.Name)
	if err != nil {
		return section, err
	}

	section.Content = content
	return section, nil
}

// replay 把已生成文档的章节按原顺序重新下发
func (g *Generator) replay(doc *model.Document) {
	logger.Infof("文档 %s 已生成，重放 %d 个章节", doc.ID, len(doc.Sections))

	for i := range doc.Sections {
		sec := doc.Sections[i]
		frame := model.ServerMessage{
			Type:        model.KindSectionContent,
			SectionID:   sec.ID,
			SectionName: sec.Name,
			Content:     sec.Content,
			IsEditable:  &sec.IsEditable,
		}
		if i == 0 {
			frame.Template = doc.TemplateType
		}
		if err := g.hub.Send(doc.ID, frame); err != nil {
			logger.Warnf("重放章节失败: %v", err)
			return
		}
	}

	g.hub.Send(doc.ID, model.ServerMessage{Type: model.KindStreamEnd})
	g.hub.Send(doc.ID, model.ServerMessage{Type: model.KindDocumentComplete})
}

func isLockedName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range lockedKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
