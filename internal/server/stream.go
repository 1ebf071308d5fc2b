// internal/server/stream.go
package server

import (
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/events"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
	streamBuffer = 256
)

// envelope frames an event on the websocket.
type envelope struct {
	Type events.EventType `json:"type"`
	Data events.Event     `json:"data"`
}

// GET /events?mint=<mint> upgrades to a websocket streaming committed events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}
	var filter solana.PublicKey
	if raw := r.URL.Query().Get("mint"); raw != "" {
		mint, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			http.Error(w, "invalid mint", http.StatusBadRequest)
			return
		}
		filter = mint
	}

	stream := events.NewStream(streamBuffer)
	var handler events.Handler = stream
	if !filter.IsZero() {
		handler = events.ForMint(filter, stream)
	}
	sub := s.bus.Subscribe(events.All, handler)
	defer sub.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.logger.Debug("Event stream opened", zap.String("remote", r.RemoteAddr))

	// The read loop only processes control frames and detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e := <-stream.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(envelope{Type: e.Type(), Data: e}); err != nil {
				s.logger.Debug("Event stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
