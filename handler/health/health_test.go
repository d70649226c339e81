package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mager/heschl/config"
	"github.com/mager/heschl/database"
	"github.com/mager/heschl/embedder"
	"github.com/mager/heschl/heschl"
	"github.com/mager/heschl/logger"
)

func TestHealthHandler(t *testing.T) {
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer sidecar.Close()

	log, _ := logger.NewTestLogger()
	emb := embedder.ProvideEmbedder(config.Config{InferenceURL: sidecar.URL})
	handler := NewHealthHandler(log, emb, database.ProvideEmbeddingStore(nil), heschl.ProvideState())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Server || !resp.Inference {
		t.Fatalf("response: %+v", resp)
	}
	if resp.Cache {
		t.Error("expected cache false without a database")
	}
	if resp.MapBuilt {
		t.Error("expected map_built false before any build")
	}
}

func TestHealthHandlerSidecarDown(t *testing.T) {
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	sidecar.Close()

	log, _ := logger.NewTestLogger()
	emb := embedder.ProvideEmbedder(config.Config{InferenceURL: sidecar.URL})
	handler := NewHealthHandler(log, emb, database.ProvideEmbeddingStore(nil), heschl.ProvideState())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Inference {
		t.Error("expected inference false when the sidecar is down")
	}
}
