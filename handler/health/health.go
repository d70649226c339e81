package health

import (
	"encoding/json"
	"net/http"

	"github.com/mager/heschl/database"
	"github.com/mager/heschl/embedder"
	"github.com/mager/heschl/heschl"
	"go.uber.org/zap"
)

// HealthHandler reports the state of the server and its sidecar.
type HealthHandler struct {
	log      *zap.SugaredLogger
	embedder *embedder.Client
	store    *database.EmbeddingStore
	state    *heschl.State
}

func (*HealthHandler) Pattern() string {
	return "/health"
}

// NewHealthHandler builds a new HealthHandler.
func NewHealthHandler(log *zap.SugaredLogger, emb *embedder.Client, store *database.EmbeddingStore, state *heschl.State) *HealthHandler {
	return &HealthHandler{
		log:      log,
		embedder: emb,
		store:    store,
		state:    state,
	}
}

type Response struct {
	Server    bool `json:"server"`
	Inference bool `json:"inference"`
	Cache     bool `json:"cache"`
	MapBuilt  bool `json:"map_built"`
}

// ServeHTTP handles an HTTP request to the /health endpoint.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var resp Response

	h.log.Info("health check")

	resp.Server = true
	resp.Inference = h.embedder.Healthy(r.Context())
	resp.Cache = h.store.Enabled()
	resp.MapBuilt = h.state.Current() != nil

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
