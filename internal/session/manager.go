package session

import (
	"context"
	"sync"
	"time"

	"travel-geo/internal/logger"
	"travel-geo/internal/metrics"

	"github.com/google/uuid"
)

// 文档注释：会话管理器
// 背景：负责会话创建、查找、停止；后台循环清理长时间无定位点的会话。
// 约束：读写锁保护注册表；清理周期默认 1 分钟，idle<=0 时不清理；停止会话在锁外执行以免阻塞查找。
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	det      Detector
	opt      Options
	idle     time.Duration
	sweep    time.Duration
}

func NewManager(det Detector, opt Options, idle time.Duration) *Manager {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Manager{sessions: make(map[string]*Session), det: det, opt: opt, idle: idle, sweep: time.Minute}
}

// Create 启动新会话
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	s := New(id, m.det, m.opt)
	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	logger.L().Info("session_started", "session", id, "active", n)
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Stop 停止并移除会话
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	metrics.ActiveSessions.Set(float64(n))
	s.Stop()
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// 文档注释：启动空闲清理循环
// 背景：客户端可能不发送停止请求即离线；周期性停止超过 idle 未活动的会话。在 ctx 取消时停止。
func (m *Manager) Start(ctx context.Context) {
	if m.idle <= 0 {
		return
	}
	t := time.NewTicker(m.sweep)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.sweepIdle()
			}
		}
	}()
}

func (m *Manager) sweepIdle() {
	now := m.opt.Now()
	var expired []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.idle {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()
	for _, id := range expired {
		if err := m.Stop(id); err == nil {
			logger.L().Info("session_idle_expired", "session", id)
		}
	}
}

// StopAll 停止全部会话（进程退出）
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Stop()
	}
	metrics.ActiveSessions.Set(0)
}
