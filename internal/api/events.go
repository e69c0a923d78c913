package api

import (
	"net/http"
	"time"

	"travel-geo/internal/logger"
	"travel-geo/internal/session"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// 文档注释：事件流（websocket）
// 背景：UI 与持久化协作者订阅已确认的国家变更事件，每个事件一条 JSON 文本消息。
// 约束：客户端只需保持连接并回应 ping；会话停止时服务端发送关闭帧；客户端发来的消息被忽略。
func serveEvents(w http.ResponseWriter, r *http.Request, s *session.Session) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Debug("ws_upgrade_error", "session", s.ID(), "err", err)
		return
	}
	defer conn.Close()

	events, cancel := s.Subscribe()
	defer cancel()
	logger.L().Debug("ws_subscribed", "session", s.ID())

	// 读循环：处理 pong 与关闭，连接断开时通知写循环
	gone := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.L().Debug("ws_write_error", "session", s.ID(), "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case <-gone:
			logger.L().Debug("ws_closed", "session", s.ID())
			return
		}
	}
}
