package http

import (
	"log/slog"
	"net/http"
	"time"

	"hightechcross/internal/app"
	"hightechcross/internal/domain"
	"github.com/gorilla/websocket"
)

// DefaultStreamInterval is how often a results stream is refreshed.
const DefaultStreamInterval = 5 * time.Second

// WSHandler pushes the leaderboard of a cross over a websocket.
type WSHandler struct {
	crosses  *app.CrossService
	interval time.Duration
	upgrader websocket.Upgrader
}

func NewWSHandler(crosses *app.CrossService, interval time.Duration) *WSHandler {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &WSHandler{
		crosses:  crosses,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS sends a snapshot right away and then every interval until the
// client goes away or the cross is finished.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrCrossNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", slog.Any("err", err))
		return
	}

	// The reader only exists to notice the client closing the socket.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
	defer func() {
		_ = conn.Close()
		<-closed
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		cross, results, err := h.crosses.Results(r.Context(), id)
		if err != nil {
			if statusOf(err) == http.StatusInternalServerError {
				logger.Error("results stream", slog.Int64("cross_id", id), slog.Any("err", err))
			}
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		if err := conn.WriteJSON(outboundMessage[[]domain.TeamResult]{Type: "results", Payload: results}); err != nil {
			logger.Debug("ws write error", slog.Any("err", err))
			return
		}
		if cross.Status == domain.CrossFinished {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "cross finished"),
				time.Now().Add(time.Second))
			return
		}

		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}
