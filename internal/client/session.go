package client

import (
	"sync"

	"docflow-backend/internal/model"
	"docflow-backend/internal/template"
	"docflow-backend/pkg/logger"
)

// StreamStatus 后端生成进度，单调：ended/complete 之后不会退回 streaming
type StreamStatus string

const (
	StatusStreaming StreamStatus = "streaming"
	StatusEnded     StreamStatus = "ended"
	StatusComplete  StreamStatus = "complete"
)

// SectionView 客户端侧的一个待审阅章节。
// Editable 在到达时解析一次后不再变化，EditMode 可随用户操作切换。
type SectionView struct {
	ID       string
	Name     string
	Content  string
	Editable bool
	EditMode bool
}

// Sender 出站通道，由 Conn 实现
type Sender interface {
	Send(msg model.ClientMessage) error
}

// Session 文档审阅状态机：持有已到达章节的有序列表、审阅游标、
// 流状态和在途反馈标记。章节按到达顺序追加，永不重排或删除；
// 游标只在用户 continue 时前进一格，永不回退。
type Session struct {
	documentID string
	sender     Sender

	mu            sync.Mutex
	template      string
	sections      []SectionView
	cursor        int
	status        StreamStatus
	processing    string // 在途反馈对应的 section id，空串表示没有
	fullyReviewed bool   // 本地审阅完成（stream_end + 游标走到尽头）
	subs          []*Subscription
}

// NewSession 创建审阅会话并把入站帧处理器注册到 dispatcher。
// 不再使用时调用 Close 退订。
func NewSession(documentID string, sender Sender, dispatcher *Dispatcher) *Session {
	s := &Session{
		documentID: documentID,
		sender:     sender,
		template:   "Technical Blog",
		status:     StatusStreaming,
	}

	s.subs = append(s.subs,
		dispatcher.Subscribe(model.KindSectionContent, s.onSectionContent),
		dispatcher.Subscribe(model.KindStreamEnd, s.onStreamEnd),
		dispatcher.Subscribe(model.KindDocumentComplete, s.onDocumentComplete),
		dispatcher.Subscribe(model.KindTemplateInfo, s.onTemplateInfo),
	)

	return s
}

func (s *Session) Close(dispatcher *Dispatcher) {
	for _, sub := range s.subs {
		dispatcher.Unsubscribe(sub)
	}
	s.subs = nil
}

func (s *Session) onSectionContent(msg model.ServerMessage) {
	if msg.SectionID == "" || msg.SectionName == "" || msg.Content == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Template != "" {
		s.template = msg.Template
	}

	// 两分支解析：后端显式给了 is_editable 用显式值，否则查本地模板配置
	var editable bool
	if msg.IsEditable != nil {
		editable = *msg.IsEditable
	} else {
		editable = template.IsSectionEditable(s.template, msg.SectionName)
	}

	s.sections = append(s.sections, SectionView{
		ID:       msg.SectionID,
		Name:     msg.SectionName,
		Content:  msg.Content,
		Editable: editable,
	})

	// 新章节到达意味着上一条反馈已被后端确认
	s.processing = ""
}

func (s *Session) onStreamEnd(msg model.ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusComplete {
		s.status = StatusEnded
	}
	s.processing = ""
}

func (s *Session) onDocumentComplete(msg model.ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = StatusComplete
	s.fullyReviewed = true
	s.processing = ""
}

func (s *Session) onTemplateInfo(msg model.ServerMessage) {
	if msg.Template == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = msg.Template
}

// RequestContinue 对游标处章节给出 continue 反馈并放行下一段。
// 仅当游标指向已到达的章节且没有在途反馈时有效。
// 发送失败时状态保持不变，等重连后由用户重新触发。
func (s *Session) RequestContinue() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing != "" {
		return ErrFeedbackInFlight
	}
	if s.cursor >= len(s.sections) {
		return ErrNoCurrentSection
	}

	sec := &s.sections[s.cursor]
	if err := s.sender.Send(model.ClientMessage{
		Type:         model.KindFeedback,
		SectionID:    sec.ID,
		FeedbackType: model.FeedbackContinue,
	}); err != nil {
		logger.Warnf("continue 反馈发送失败: %v", err)
		return err
	}

	sec.EditMode = false
	s.processing = sec.ID
	s.cursor++

	// 流已结束且游标走到尽头：本地视为审阅完成，
	// 与后端确认的 document_complete 是两个独立状态
	if (s.status == StatusEnded || s.status == StatusComplete) && s.cursor >= len(s.sections) {
		s.fullyReviewed = true
	}

	return nil
}

// RequestEdit 把游标处章节切入编辑态，纯本地操作不发帧
func (s *Session) RequestEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing != "" {
		return ErrFeedbackInFlight
	}
	if s.cursor >= len(s.sections) {
		return ErrNoCurrentSection
	}

	sec := &s.sections[s.cursor]
	if !sec.Editable {
		return ErrSectionNotEditable
	}
	if sec.EditMode {
		return ErrAlreadyEditing
	}

	sec.EditMode = true
	return nil
}

// SubmitEdit 替换任意已到达章节的内容并发 edit 反馈。
// 不动游标和在途标记；本地替换先生效，发送失败只向调用方报告。
func (s *Session) SubmitEdit(index int, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.sections) {
		return ErrNoSuchSection
	}

	sec := &s.sections[index]
	sec.Content = content

	if err := s.sender.Send(model.ClientMessage{
		Type:          model.KindFeedback,
		SectionID:     sec.ID,
		FeedbackType:  model.FeedbackEdit,
		EditedContent: content,
	}); err != nil {
		logger.Warnf("edit 反馈发送失败: %v", err)
		return err
	}

	return nil
}

func (s *Session) DocumentID() string {
	return s.documentID
}

// Sections 返回章节快照
func (s *Session) Sections() []SectionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SectionView, len(s.sections))
	copy(out, s.sections)
	return out
}

// Cursor 返回已放行审阅的章节数，cursor 处的章节即当前待反馈章节
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Session) Status() StreamStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Processing 返回在途反馈的 section id，空串表示没有
func (s *Session) Processing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

func (s *Session) Template() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.template
}

// FullyReviewed 本地审阅完成（不依赖后端的 document_complete）
func (s *Session) FullyReviewed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullyReviewed
}

// Completed 审阅结束：本地走完或后端确认，二者居一
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullyReviewed || s.status == StatusComplete
}
