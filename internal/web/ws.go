package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The display layer runs on localhost; cross-origin pages are not served.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const pushInterval = time.Second

// handleWS pushes a position snapshot once a second until the client drops.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Reads are only consumed to notice the client closing.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snapshot := map[string]any{
				"positions":    s.positionViews(),
				"realized_pnl": s.ledger.RealizedPnL(),
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(snapshot); err != nil {
				s.logger.Debug("ws client dropped", zap.Error(err))
				return
			}
		}
	}
}
