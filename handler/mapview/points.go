package mapview

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mager/heschl/heschl"
	"go.uber.org/zap"
)

// PointsHandler serves the full scatter payload for the frontend.
type PointsHandler struct {
	log   *zap.SugaredLogger
	state *heschl.State
}

func (*PointsHandler) Pattern() string {
	return "/map/points"
}

// NewPointsHandler builds a new PointsHandler.
func NewPointsHandler(log *zap.SugaredLogger, state *heschl.State) *PointsHandler {
	return &PointsHandler{
		log:   log,
		state: state,
	}
}

type PointsResponse struct {
	Dataset string         `json:"dataset"`
	Model   string         `json:"model"`
	Built   time.Time      `json:"built"`
	Count   int            `json:"count"`
	Points  []heschl.Point `json:"points"`
}

// Get map points
// @Summary Get map points
// @Description Get the 2-D projection of every track in the current map
// @Accept json
// @Produce json
// @Success 200 {object} PointsResponse
// @Router /map/points [get]
func (h *PointsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	m := h.state.Current()
	if m == nil {
		http.Error(w, `{"error":"no map built yet"}`, http.StatusNotFound)
		return
	}

	resp := PointsResponse{
		Dataset: m.Dataset,
		Model:   m.Model,
		Built:   m.Built,
		Count:   len(m.Points),
		Points:  m.Points,
	}
	json.NewEncoder(w).Encode(resp)
}
