package mapview

import (
	"encoding/json"
	"net/http"

	"github.com/mager/heschl/pipeline"
	"go.uber.org/zap"
)

// StatusHandler reports the running (or last) build.
type StatusHandler struct {
	log      *zap.SugaredLogger
	pipeline *pipeline.Pipeline
}

func (*StatusHandler) Pattern() string {
	return "/map/status"
}

// NewStatusHandler builds a new StatusHandler.
func NewStatusHandler(log *zap.SugaredLogger, p *pipeline.Pipeline) *StatusHandler {
	return &StatusHandler{
		log:      log,
		pipeline: p,
	}
}

// Get build status
// @Summary Get build status
// @Description Get the progress of the current or last build
// @Produce json
// @Success 200 {object} pipeline.Progress
// @Router /map/status [get]
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.pipeline.Status())
}
