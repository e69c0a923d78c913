// 包 tracker：国家变更确认状态机（滞回 + 超时 + 历史）
package tracker

import (
	"slices"
	"strings"
	"time"

	"travel-geo/internal/detector"
	"travel-geo/internal/logger"
	"travel-geo/internal/metrics"
)

const (
	DefaultThreshold = 3
	DefaultTimeout   = 30 * time.Second
)

// Outcome：单次观测的处理结果
type Outcome string

const (
	// OutcomeNone 本轮无检测结果，状态不变
	OutcomeNone      Outcome = "none"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomePending   Outcome = "pending"
	OutcomeConfirmed Outcome = "confirmed"
)

// PendingChange：尚未确认的候选国家
type PendingChange struct {
	CountryCode     string    `json:"countryCode"`
	Confirmations   int       `json:"confirmations"`
	FirstDetectedAt time.Time `json:"firstDetectedAt"`
}

// Event：已确认的国家变更（CountryVisitEvent），每次确认恰好产生一个
type Event struct {
	CountryInfo         detector.CountryInfo `json:"countryInfo"`
	Coordinates         detector.Coordinates `json:"coordinates"`
	IsReturn            bool                 `json:"isReturn"`
	PreviousCountryCode string               `json:"previousCountryCode,omitempty"`
	ConfirmedAt         time.Time            `json:"confirmedAt"`
}

// 文档注释：确认状态机
// 背景：把逐点检测的噪声流转换为低噪声的国家变更信号；首次检测立即确认，之后每次变更需连续 threshold 次同国检测，
// 且首末间隔不超过 timeout。
// 约束：非并发安全，调用方保证单写者（会话内串行）；lastCountry 只会经确认或显式预置改变。
type Machine struct {
	threshold int
	timeout   time.Duration

	last    string
	history []string
	pending *PendingChange
}

func NewMachine(threshold int, timeout time.Duration) *Machine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Machine{threshold: threshold, timeout: timeout}
}

// Observe 处理一次检测结果；info 为 nil 时既不推进也不重置候选
func (m *Machine) Observe(info *detector.CountryInfo, at detector.Coordinates, now time.Time) (Outcome, *Event) {
	if info == nil || info.Code == "" {
		return OutcomeNone, nil
	}
	code := strings.ToUpper(info.Code)

	if m.last == "" {
		return OutcomeConfirmed, m.promote(*info, code, at, now)
	}

	if code == m.last {
		if m.pending != nil {
			logger.L().Debug("country_pending_reverted", "pending", m.pending.CountryCode, "confirmations", m.pending.Confirmations, "current", m.last)
			metrics.PendingResetsTotal.WithLabelValues("reverted").Inc()
			m.pending = nil
		}
		return OutcomeUnchanged, nil
	}

	switch {
	case m.pending == nil:
		m.pending = &PendingChange{CountryCode: code, Confirmations: 1, FirstDetectedAt: now}
	case m.pending.CountryCode != code:
		logger.L().Debug("country_pending_replaced", "old", m.pending.CountryCode, "new", code)
		metrics.PendingResetsTotal.WithLabelValues("replaced").Inc()
		m.pending = &PendingChange{CountryCode: code, Confirmations: 1, FirstDetectedAt: now}
	case now.Sub(m.pending.FirstDetectedAt) > m.timeout:
		logger.L().Debug("country_pending_expired", "pending", code, "confirmations", m.pending.Confirmations, "elapsed_ms", now.Sub(m.pending.FirstDetectedAt).Milliseconds())
		metrics.PendingResetsTotal.WithLabelValues("timeout").Inc()
		m.pending = &PendingChange{CountryCode: code, Confirmations: 1, FirstDetectedAt: now}
	default:
		m.pending.Confirmations++
	}

	if m.pending.Confirmations >= m.threshold {
		return OutcomeConfirmed, m.promote(*info, code, at, now)
	}
	logger.L().Debug("country_pending", "pending", code, "confirmations", m.pending.Confirmations, "threshold", m.threshold, "current", m.last)
	return OutcomePending, nil
}

func (m *Machine) promote(info detector.CountryInfo, code string, at detector.Coordinates, now time.Time) *Event {
	prev := m.last
	isReturn := prev != "" && slices.Contains(m.history, code)
	m.last = code
	m.history = append(m.history, code)
	m.pending = nil

	kind := "new"
	switch {
	case prev == "":
		kind = "first"
	case isReturn:
		kind = "return"
	}
	metrics.ConfirmationsTotal.WithLabelValues(kind).Inc()
	logger.L().Info("country_confirmed", "country_code", code, "previous", prev, "is_return", isReturn, "history_len", len(m.history))

	info.Code = code
	return &Event{
		CountryInfo:         info,
		Coordinates:         at,
		IsReturn:            isReturn,
		PreviousCountryCode: prev,
		ConfirmedAt:         now,
	}
}

// Reset 清空最后国家、历史与候选；下一次检测按首次检测处理
func (m *Machine) Reset() {
	m.last = ""
	m.history = nil
	m.pending = nil
}

// Prime 预置最后确认国家（会话恢复）；历史中不存在时追加，清除候选
func (m *Machine) Prime(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return
	}
	m.last = code
	if !slices.Contains(m.history, code) {
		m.history = append(m.history, code)
	}
	m.pending = nil
}

func (m *Machine) LastCountry() string { return m.last }

// History 返回历史副本
func (m *Machine) History() []string { return slices.Clone(m.history) }

// Pending 返回当前候选的副本
func (m *Machine) Pending() (PendingChange, bool) {
	if m.pending == nil {
		return PendingChange{}, false
	}
	return *m.pending, true
}
