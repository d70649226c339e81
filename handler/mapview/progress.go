package mapview

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mager/heschl/pipeline"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server only binds locally.
		return true
	},
}

// ProgressHandler streams build progress over a WebSocket.
type ProgressHandler struct {
	log      *zap.SugaredLogger
	pipeline *pipeline.Pipeline
}

func (*ProgressHandler) Pattern() string {
	return "/map/progress"
}

// NewProgressHandler builds a new ProgressHandler.
func NewProgressHandler(log *zap.SugaredLogger, p *pipeline.Pipeline) *ProgressHandler {
	return &ProgressHandler{
		log:      log,
		pipeline: p,
	}
}

func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("Error upgrading connection to WebSocket", "error", err)
		return
	}
	defer conn.Close()

	h.log.Info("progress client connected")

	updates, cancel := h.pipeline.Subscribe()
	defer cancel()

	// Drain incoming frames so close messages are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case p := <-updates:
			if err := conn.WriteJSON(p); err != nil {
				h.log.Errorw("Error sending WebSocket message", "error", err)
				return
			}
		}
	}
}
