package collection

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	fs "cloud.google.com/go/firestore"
	fsClient "github.com/mager/heschl/firestore"
	"github.com/mager/heschl/heschl"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CollectionsDoc holds every saved selection for one dataset, stored as
// a single document keyed by the dataset slug.
type CollectionsDoc struct {
	Collections []fsClient.CollectionDoc `json:"collections" firestore:"collections"`
}

// CollectionHandler saves and lists named selections off the map.
type CollectionHandler struct {
	log   *zap.SugaredLogger
	fs    *fs.Client
	state *heschl.State
}

func (*CollectionHandler) Pattern() string {
	return "/collections"
}

// NewCollectionHandler builds a new CollectionHandler.
func NewCollectionHandler(log *zap.SugaredLogger, fsc *fs.Client, state *heschl.State) *CollectionHandler {
	return &CollectionHandler{
		log:   log,
		fs:    fsc,
		state: state,
	}
}

type SaveCollectionRequest struct {
	Name string   `json:"name"`
	Keys []string `json:"keys"`
}

type CollectionsResponse struct {
	Collections []fsClient.CollectionDoc `json:"collections"`
}

func (h *CollectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.fs == nil {
		http.Error(w, `{"error":"collections are not configured"}`, http.StatusServiceUnavailable)
		return
	}
	m := h.state.Current()
	if m == nil {
		http.Error(w, `{"error":"no map built yet"}`, http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.list(r.Context(), w, m.Dataset)
	case http.MethodPost:
		h.save(w, r, m)
	default:
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (h *CollectionHandler) list(ctx context.Context, w http.ResponseWriter, dataset string) {
	doc, err := h.load(ctx, dataset)
	if err != nil {
		h.log.Errorw("Failed to load collections", "error", err)
		http.Error(w, `{"error":"failed to load collections"}`, http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(CollectionsResponse{Collections: doc.Collections})
}

func (h *CollectionHandler) save(w http.ResponseWriter, r *http.Request, m *heschl.Map) {
	ctx := r.Context()

	var req SaveCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Name == "" || len(req.Keys) == 0 {
		http.Error(w, `{"error":"name and keys are required"}`, http.StatusBadRequest)
		return
	}

	// Only keys on the current map are worth saving.
	keys := make([]string, 0, len(req.Keys))
	for _, k := range req.Keys {
		if _, ok := m.Row(k); ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		http.Error(w, `{"error":"no known keys in selection"}`, http.StatusBadRequest)
		return
	}

	doc, err := h.load(ctx, m.Dataset)
	if err != nil {
		h.log.Errorw("Failed to load collections", "error", err)
		http.Error(w, `{"error":"failed to load collections"}`, http.StatusInternalServerError)
		return
	}

	entry := fsClient.CollectionDoc{
		Name:    req.Name,
		Dataset: m.Dataset,
		Keys:    keys,
		Created: time.Now().Unix(),
	}
	replaced := false
	for i, c := range doc.Collections {
		if c.Name == req.Name {
			doc.Collections[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Collections = append(doc.Collections, entry)
	}

	if _, err := h.fs.Collection("collections").Doc(datasetSlug(m.Dataset)).Set(ctx, doc); err != nil {
		h.log.Errorw("Failed to save collection", "error", err)
		http.Error(w, `{"error":"failed to save collection"}`, http.StatusInternalServerError)
		return
	}

	h.log.Infow("collection saved", "name", req.Name, "keys", len(keys))
	json.NewEncoder(w).Encode(entry)
}

func (h *CollectionHandler) load(ctx context.Context, dataset string) (CollectionsDoc, error) {
	var doc CollectionsDoc
	snap, err := h.fs.Collection("collections").Doc(datasetSlug(dataset)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return doc, nil
		}
		return doc, err
	}
	if err := snap.DataTo(&doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// datasetSlug flattens a dataset name like "marsyas/gtzan" into a
// firestore-safe doc ID.
func datasetSlug(dataset string) string {
	return strings.ReplaceAll(dataset, "/", "__")
}
