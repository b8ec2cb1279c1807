package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const streamWriteWait = 5 * time.Second

// handleStream pushes every published snapshot to a websocket client. Slow
// clients only ever see the latest snapshot; intermediate ones are dropped.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates, cancelSub := s.game.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: the client sends nothing meaningful, but reading is how a
	// close frame or a dead peer is noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			return
		case snap := <-updates:
			if snap == nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				s.log.Debug("stream write failed", "err", err)
				return
			}
		}
	}
}
