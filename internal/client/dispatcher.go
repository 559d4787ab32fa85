package client

import (
	"encoding/json"
	"sync"

	"docflow-backend/internal/model"
	"docflow-backend/pkg/logger"
)

// Handler 收到对应类型的帧时被同步调用，不应阻塞
type Handler func(msg model.ServerMessage)

// Subscription 订阅凭据，退订时按凭据移除而不是比较函数标识
type Subscription struct {
	kind model.MessageKind
	id   uint64
	fn   Handler
}

// Dispatcher 按帧类型分发的发布/订阅注册表。
// 同一类型可以有多个 handler，按注册顺序依次调用；
// 订阅 KindAny 可以额外收到所有解析成功的帧。
type Dispatcher struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[model.MessageKind][]*Subscription
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subs: make(map[model.MessageKind][]*Subscription),
	}
}

func (d *Dispatcher) Subscribe(kind model.MessageKind, fn Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	sub := &Subscription{kind: kind, id: d.nextID, fn: fn}
	d.subs[kind] = append(d.subs[kind], sub)
	return sub
}

// Unsubscribe 移除订阅，凭据未注册时为空操作
func (d *Dispatcher) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.subs[sub.kind]
	for i, s := range list {
		if s.id == sub.id {
			d.subs[sub.kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Dispatch 解析入站帧并同步分发。解析失败的帧丢弃并记日志，
// 绝不让坏帧传染到状态机。
func (d *Dispatcher) Dispatch(raw []byte) {
	var msg model.ServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Errorf("解析 WebSocket 消息失败: %v", err)
		return
	}

	d.mu.Lock()
	targets := make([]*Subscription, 0, len(d.subs[msg.Type])+len(d.subs[model.KindAny]))
	targets = append(targets, d.subs[msg.Type]...)
	targets = append(targets, d.subs[model.KindAny]...)
	d.mu.Unlock()

	for _, sub := range targets {
		invoke(sub.fn, msg)
	}
}

// 单个 handler panic 不能中断后续 handler 的分发
func invoke(fn Handler, msg model.ServerMessage) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("消息 handler panic: %v", r)
		}
	}()
	fn(msg)
}
