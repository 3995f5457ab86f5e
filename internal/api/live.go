package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/pathway-engine/internal/live"
	"github.com/terra-clan/pathway-engine/internal/observability"
	"github.com/terra-clan/pathway-engine/internal/tracker"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveMessage is one frame sent to a live dashboard client
type LiveMessage struct {
	Type      string             `json:"type"`
	Dashboard *tracker.Dashboard `json:"dashboard,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	observability.LiveConnectionOpened()
	defer observability.LiveConnectionClosed()
	slog.Info("live dashboard connected", "user_id", userID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writeMu sync.Mutex
	write := func(msg LiveMessage) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	var wg sync.WaitGroup

	// Clients only send control frames; reading keeps pongs flowing and
	// notices when the peer goes away.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(livePingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
				writeMu.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	err = live.Stream(ctx, s.manager, userID, func(d *tracker.Dashboard) error {
		return write(LiveMessage{Type: "dashboard", Dashboard: d})
	})
	if err != nil && ctx.Err() == nil {
		slog.Warn("live stream ended", "user_id", userID, "error", err)
		write(LiveMessage{Type: "error", Error: "live updates unavailable"})
	}

	cancel()
	conn.Close()
	wg.Wait()
	slog.Info("live dashboard disconnected", "user_id", userID)
}
