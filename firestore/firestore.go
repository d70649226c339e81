package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/mager/heschl/config"
	"go.uber.org/zap"
)

// CollectionDoc is a named selection of tracks saved off the map.
type CollectionDoc struct {
	Name    string   `json:"name" firestore:"name"`
	Dataset string   `json:"dataset" firestore:"dataset"`
	Keys    []string `json:"keys" firestore:"keys"`
	Created int64    `json:"created" firestore:"created"`
}

// ProvideDB provides a firestore client. Saved collections are
// disabled when the client cannot be created.
func ProvideDB(cfg config.Config, logger *zap.SugaredLogger) *firestore.Client {
	client, err := firestore.NewClient(context.TODO(), cfg.FirestoreProject)
	if err != nil {
		logger.Warnw("failed to create firestore client, collections disabled", "error", err)
		return nil
	}
	return client
}

var Options = ProvideDB
