package mapview

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mager/heschl/pipeline"
	"go.uber.org/zap"
)

// BuildHandler starts a map build.
type BuildHandler struct {
	log      *zap.SugaredLogger
	pipeline *pipeline.Pipeline
}

func (*BuildHandler) Pattern() string {
	return "/map/build"
}

// NewBuildHandler builds a new BuildHandler.
func NewBuildHandler(log *zap.SugaredLogger, p *pipeline.Pipeline) *BuildHandler {
	return &BuildHandler{
		log:      log,
		pipeline: p,
	}
}

type BuildResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Build the map
// @Summary Build the map
// @Description Pull the dataset, embed every row and project to 2-D
// @Accept json
// @Produce json
// @Success 202 {object} BuildResponse
// @Router /map/build [post]
func (h *BuildHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	jobID, err := h.pipeline.Start()
	if err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			http.Error(w, `{"error":"a build is already running"}`, http.StatusConflict)
			return
		}
		h.log.Errorw("failed to start build", "error", err)
		http.Error(w, `{"error":"failed to start build"}`, http.StatusInternalServerError)
		return
	}

	h.log.Infow("build started", "job_id", jobID)

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(BuildResponse{JobID: jobID, Status: "started"})
}
