package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/lulo-labs/lulo-sc/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBacklogPage  = 200
	wsBuffer       = 128
)

// handleEventsWS streams committed events starting at ?cursor=N. The backlog
// is replayed from the journal before live records are forwarded.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Journal == nil {
		http.Error(w, "event journal disabled", http.StatusServiceUnavailable)
		return
	}
	var cursor uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}
	if !s.limiter.allow(s.clientSource(r)) {
		s.metrics.RecordThrottle("ws")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	// Clients never send frames; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor uint64) error {
	live, head, cancel := s.cfg.Journal.Subscribe(wsBuffer)
	defer cancel()

	if cursor == 0 {
		cursor = 1
	}
	for cursor < head {
		records, next, err := s.cfg.Journal.Read(cursor, wsBacklogPage)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			break
		}
		for _, rec := range records {
			if err := writeCommitted(ctx, conn, rec); err != nil {
				return err
			}
		}
		cursor = next
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-live:
			if !ok {
				return conn.Close(websocket.StatusTryAgainLater, "subscriber fell behind")
			}
			if rec.Sequence < cursor {
				continue
			}
			if err := writeCommitted(ctx, conn, rec); err != nil {
				return err
			}
			cursor = rec.Sequence + 1
		}
	}
}

func writeCommitted(ctx context.Context, conn *websocket.Conn, rec events.Committed) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
