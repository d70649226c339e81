package mapview

import (
	"encoding/json"
	"net/http"

	"github.com/mager/heschl/heschl"
	"github.com/mager/heschl/table"
	"go.uber.org/zap"
)

// SelectHandler recomputes the linked table view for the current plot
// selection. The frontend posts the selected keys every time the
// selection changes.
type SelectHandler struct {
	log   *zap.SugaredLogger
	state *heschl.State
}

func (*SelectHandler) Pattern() string {
	return "/map/select"
}

// NewSelectHandler builds a new SelectHandler.
func NewSelectHandler(log *zap.SugaredLogger, state *heschl.State) *SelectHandler {
	return &SelectHandler{
		log:   log,
		state: state,
	}
}

type SelectRequest struct {
	// Keys is the plot selection. Empty means no selection, which
	// shows the whole table.
	Keys       []string `json:"keys"`
	SortBy     string   `json:"sort_by,omitempty"`
	Descending bool     `json:"descending,omitempty"`
}

type SelectResponse struct {
	Count int            `json:"count"`
	Rows  []heschl.Point `json:"rows"`
}

// Filter the table by plot selection
// @Summary Filter the table by plot selection
// @Description Return the table rows for the selected points
// @Accept json
// @Produce json
// @Success 200 {object} SelectResponse
// @Router /map/select [post]
func (h *SelectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	m := h.state.Current()
	if m == nil {
		http.Error(w, `{"error":"no map built yet"}`, http.StatusNotFound)
		return
	}

	rows := m.Select(req.Keys)
	if req.SortBy != "" {
		table.SortPoints(rows, req.SortBy, req.Descending)
	}

	h.log.Debugw("selection filtered", "selected", len(req.Keys), "rows", len(rows))

	json.NewEncoder(w).Encode(SelectResponse{Count: len(rows), Rows: rows})
}
