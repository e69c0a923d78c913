// 包 session：Travel Mode 会话（串行处理定位点、确认状态机、事件投递与图片补充）
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"travel-geo/internal/detector"
	"travel-geo/internal/logger"
	"travel-geo/internal/metrics"
	"travel-geo/internal/photos"
	"travel-geo/internal/tracker"
)

var (
	ErrNotFound = errors.New("session: not found")
	ErrStopped  = errors.New("session: stopped")
)

// Status：一次定位点处理的结果
type Status string

const (
	StatusNone      Status = Status(tracker.OutcomeNone)
	StatusUnchanged Status = Status(tracker.OutcomeUnchanged)
	StatusPending   Status = Status(tracker.OutcomePending)
	StatusConfirmed Status = Status(tracker.OutcomeConfirmed)
	// StatusStale 乱序到达或在重置前开始的检测，结果已丢弃
	StatusStale Status = "stale"
)

// Detector 抽象国家检测器，便于测试注入
type Detector interface {
	Detect(ctx context.Context, c detector.Coordinates) (*detector.CountryInfo, detector.Source)
}

// Sink 接收已确认事件（UI、持久化等外部协作者）；每个事件恰好调用一次，实现不应阻塞
type Sink interface {
	Deliver(ev tracker.Event)
}

// SinkFunc 函数适配器
type SinkFunc func(ev tracker.Event)

func (f SinkFunc) Deliver(ev tracker.Event) { f(ev) }

// Fix：一个定位点；Timestamp 为采样时间，零值时使用当前时钟
type Fix struct {
	detector.Coordinates
	Timestamp time.Time `json:"timestamp"`
}

// Result：HandleFix 的返回
type Result struct {
	Status  Status                 `json:"status"`
	Source  detector.Source        `json:"source"`
	Country *detector.CountryInfo  `json:"country,omitempty"`
	Pending *tracker.PendingChange `json:"pending,omitempty"`
	Event   *tracker.Event         `json:"event,omitempty"`
}

// Snapshot：会话状态快照
type Snapshot struct {
	ID          string                 `json:"id"`
	LastCountry string                 `json:"lastCountry,omitempty"`
	History     []string               `json:"history"`
	Pending     *tracker.PendingChange `json:"pending,omitempty"`
	LastFixAt   *time.Time             `json:"lastFixAt,omitempty"`
	Stopped     bool                   `json:"stopped"`
}

// Options 会话参数
type Options struct {
	Threshold    int
	Timeout      time.Duration
	PhotoTimeout time.Duration
	Photos       photos.Enricher
	Now          func() time.Time
}

type delivery struct {
	ev  tracker.Event
	ctx context.Context
}

// 文档注释：Travel Mode 会话
// 背景：每个会话独立持有状态机，避免进程级单例；多个会话可并发存在。
// 约束：fixMu 串行化定位点（检测在锁内执行，保证按采样顺序处理）；mu 保护状态机与重置纪元，
// 允许 Reset/Stop 在检测进行中执行，检测结果若早于重置则丢弃；事件经单一投递协程按确认顺序交付。
type Session struct {
	id  string
	det Detector
	opt Options

	fixMu sync.Mutex

	mu          sync.Mutex
	machine     *tracker.Machine
	epoch       uint64
	lastFix     time.Time
	lastActive  time.Time
	stopped     bool
	photoCtx    context.Context
	photoCancel context.CancelFunc
	queue       chan delivery

	sinkMu sync.RWMutex
	sinks  []Sink
	bc     *Broadcaster

	done chan struct{}
}

func New(id string, det Detector, opt Options) *Session {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.PhotoTimeout <= 0 {
		opt.PhotoTimeout = 8 * time.Second
	}
	s := &Session{
		id:      id,
		det:     det,
		opt:     opt,
		machine: tracker.NewMachine(opt.Threshold, opt.Timeout),
		queue:   make(chan delivery, 64),
		bc:      NewBroadcaster(),
		done:    make(chan struct{}),
	}
	s.lastActive = opt.Now()
	s.photoCtx, s.photoCancel = context.WithCancel(context.Background())
	s.sinks = []Sink{s.bc}
	go s.deliverLoop()
	return s
}

func (s *Session) ID() string { return s.id }

// AddSink 注册事件接收者
func (s *Session) AddSink(k Sink) {
	s.sinkMu.Lock()
	s.sinks = append(s.sinks, k)
	s.sinkMu.Unlock()
}

// Subscribe 订阅事件流；会话停止时通道关闭
func (s *Session) Subscribe() (<-chan tracker.Event, func()) { return s.bc.Subscribe() }

// SubscriberCount 当前事件流订阅者数量
func (s *Session) SubscriberCount() int { return s.bc.Len() }

// 文档注释：处理一个定位点
// 流程：乱序检查 → 检测（可挂起于网络） → 纪元校验 → 状态机 → 确认时入投递队列。
// 返回：检测失败不是错误；仅会话已停止时返回 ErrStopped。
func (s *Session) HandleFix(ctx context.Context, f Fix) (Result, error) {
	s.fixMu.Lock()
	defer s.fixMu.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Result{}, ErrStopped
	}
	now := s.opt.Now()
	s.lastActive = now
	ts := f.Timestamp
	if ts.IsZero() {
		ts = now
	}
	if !s.lastFix.IsZero() && ts.Before(s.lastFix) {
		s.mu.Unlock()
		metrics.StaleFixesTotal.Inc()
		logger.L().Debug("fix_out_of_order", "session", s.id, "ts", ts, "last", s.lastFix)
		return Result{Status: StatusStale, Source: detector.SourceNone}, nil
	}
	s.lastFix = ts
	epoch := s.epoch
	s.mu.Unlock()

	info, src := s.det.Detect(ctx, f.Coordinates)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.epoch != epoch {
		metrics.StaleFixesTotal.Inc()
		logger.L().Debug("fix_discarded_after_reset", "session", s.id)
		return Result{Status: StatusStale, Source: src}, nil
	}
	out, ev := s.machine.Observe(info, f.Coordinates, ts)
	res := Result{Status: Status(out), Source: src, Country: info, Event: ev}
	if p, ok := s.machine.Pending(); ok {
		res.Pending = &p
	}
	if ev != nil {
		s.queue <- delivery{ev: *ev, ctx: s.photoCtx}
	}
	return res, nil
}

// Prime 以已知国家恢复会话（不经过确认流程）
func (s *Session) Prime(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	s.machine.Prime(code)
	s.lastActive = s.opt.Now()
	logger.L().Info("session_primed", "session", s.id, "country_code", s.machine.LastCountry())
	return nil
}

// Reset 清空状态并取消进行中的图片请求；进行中的检测结果将被丢弃
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.machine.Reset()
	s.epoch++
	s.lastFix = time.Time{}
	s.photoCancel()
	s.photoCtx, s.photoCancel = context.WithCancel(context.Background())
	logger.L().Debug("session_reset", "session", s.id, "epoch", s.epoch)
}

// 文档注释：停止 Travel Mode
// 背景：重置状态、取消图片请求、关闭投递队列并等待已确认事件交付完毕（无图片），最后关闭订阅者。
// 约束：幂等。
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopped = true
	s.resetLocked()
	s.photoCancel()
	close(s.queue)
	s.mu.Unlock()
	<-s.done
	logger.L().Info("session_stopped", "session", s.id)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:          s.id,
		LastCountry: s.machine.LastCountry(),
		History:     s.machine.History(),
		Stopped:     s.stopped,
	}
	if snap.History == nil {
		snap.History = []string{}
	}
	if p, ok := s.machine.Pending(); ok {
		snap.Pending = &p
	}
	if !s.lastFix.IsZero() {
		t := s.lastFix
		snap.LastFixAt = &t
	}
	return snap
}

// idleSince 返回最近一次活动时间
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) deliverLoop() {
	defer close(s.done)
	defer s.bc.Close()
	for d := range s.queue {
		ev := d.ev
		if ev.CountryInfo.Rich && s.opt.Photos != nil && d.ctx.Err() == nil {
			ev.CountryInfo = ev.CountryInfo.WithPhotos(s.fetchPhotos(d.ctx, ev.CountryInfo))
		}
		s.sinkMu.RLock()
		sinks := append([]Sink(nil), s.sinks...)
		s.sinkMu.RUnlock()
		for _, k := range sinks {
			k.Deliver(ev)
		}
		logger.L().Debug("event_delivered", "session", s.id, "country_code", ev.CountryInfo.Code, "photos", len(ev.CountryInfo.Photos), "sinks", len(sinks))
	}
}

// fetchPhotos 失败降级为空列表
func (s *Session) fetchPhotos(ctx context.Context, info detector.CountryInfo) []string {
	ctx, cancel := context.WithTimeout(ctx, s.opt.PhotoTimeout)
	defer cancel()
	urls, err := s.opt.Photos.FetchPhotos(ctx, info.Name, info.Code)
	if err != nil {
		metrics.PhotoFailTotal.Inc()
		logger.L().Info("photo_degraded", "session", s.id, "country_code", info.Code, "err", err)
		return nil
	}
	if len(urls) > photos.MaxPhotos {
		urls = urls[:photos.MaxPhotos]
	}
	return urls
}
