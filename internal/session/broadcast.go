package session

import (
	"sync"

	"travel-geo/internal/logger"
	"travel-geo/internal/tracker"
)

const subscriberBuffer = 16

// 文档注释：事件广播
// 背景：把确认事件扇出给多个订阅者（websocket 连接等）。
// 约束：投递不阻塞；订阅者缓冲满时丢弃该订阅者的这条事件并记录日志；Close 后新订阅立即得到已关闭通道。
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan tracker.Event
	next   int
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan tracker.Event)}
}

// Subscribe 返回事件通道与取消函数
func (b *Broadcaster) Subscribe() (<-chan tracker.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan tracker.Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

func (b *Broadcaster) Deliver(ev tracker.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.L().Warn("event_subscriber_slow", "subscriber", id, "country_code", ev.CountryInfo.Code)
		}
	}
}

// Close 关闭全部订阅通道
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Len 当前订阅者数量
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
