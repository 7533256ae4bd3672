package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// handleWS streams simulation frames over a websocket. A frame is sent each
// FrameInterval when the tick has advanced; the first frame is sent at once.
// Client messages are read only to notice disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.wsConns, 1)
	defer atomic.AddInt32(&s.wsConns, -1)
	if current > maxWSConns {
		http.Error(w, "too many websocket connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader goroutine.
	go func() {
		defer cancel()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.Debug("websocket client connected", "remote", r.RemoteAddr)

	ticker := time.NewTicker(s.FrameInterval)
	defer ticker.Stop()

	sent := false
	var lastTick uint64
	for {
		if tick := s.Sim.CurrentTick(); !sent || tick != lastTick {
			frame := s.Sim.Frame()
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(frame); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
			sent = true
			lastTick = frame.Tick
		}

		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			slog.Debug("websocket client disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
		}
	}
}
