// Package web serves the embedded single-page frontend: a scatter plot
// of the map with a linked table, wired to the JSON endpoints.
package web

import (
	"embed"
	"net/http"

	"go.uber.org/zap"
)

//go:embed static
var staticFS embed.FS

// Handler serves the frontend page.
type Handler struct {
	log *zap.SugaredLogger
}

func (*Handler) Pattern() string {
	return "/"
}

// NewHandler builds a new Handler.
func NewHandler(log *zap.SugaredLogger) *Handler {
	return &Handler{log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	index, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		h.log.Errorw("failed to read embedded index", "error", err)
		http.Error(w, "frontend missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(index)
}
