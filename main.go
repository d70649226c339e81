package main

import (
	"context"
	"net"
	"net/http"

	fs "cloud.google.com/go/firestore"
	"github.com/joho/godotenv"
	"github.com/mager/heschl/config"
	"github.com/mager/heschl/database"
	"github.com/mager/heschl/embedder"
	"github.com/mager/heschl/firestore"
	"github.com/mager/heschl/handler/collection"
	"github.com/mager/heschl/handler/health"
	"github.com/mager/heschl/handler/mapview"
	trackHandler "github.com/mager/heschl/handler/track"
	"github.com/mager/heschl/heschl"
	"github.com/mager/heschl/hf"
	"github.com/mager/heschl/logger"
	"github.com/mager/heschl/musicbrainz"
	"github.com/mager/heschl/pipeline"
	"github.com/mager/heschl/spotify"
	"github.com/mager/heschl/web"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Route is an http.Handler that knows the mux pattern
// under which it will be registered.
type Route interface {
	http.Handler

	// Pattern reports the path at which this is registered.
	Pattern() string
}

//	@title			Heschl
//	@version		1.0
//	@description	This is the API for heschl, the audio embedding map

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

// @host		localhost:8080
// @BasePath	/
func main() {
	_ = godotenv.Load() // loads .env

	fx.New(
		fx.Provide(NewHTTPServer,
			config.Options,
			logger.Options,
			heschl.Options,
			database.Options,
			database.StoreOptions,
			firestore.Options,
			spotify.Options,
			musicbrainz.Options,
			embedder.Options,
			pipeline.Options,

			fx.Annotate(hf.ProvideHF, fx.As(new(pipeline.DatasetSource))),
			fx.Annotate(embedder.ProvideEmbedder, fx.As(new(pipeline.Inference))),
		),
		fx.Invoke(func(*http.Server) {}),
	).Run()
}

func NewHTTPServer(
	lc fx.Lifecycle,
	log *zap.SugaredLogger,
	cfg config.Config,
	state *heschl.State,
	p *pipeline.Pipeline,
	emb *embedder.Client,
	store *database.EmbeddingStore,
	spotifyClient *spotify.SpotifyClient,
	musicbrainzClient *musicbrainz.MusicbrainzClient,
	fsClient *fs.Client,
) *http.Server {
	mux := http.NewServeMux()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Infow("Starting HTTP server", "addr", srv.Addr, "dataset", cfg.Dataset, "model", cfg.EmbedModel)
			go srv.Serve(ln)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	// Define handlers
	routes := []Route{
		health.NewHealthHandler(log, emb, store, state),
		mapview.NewBuildHandler(log, p),
		mapview.NewStatusHandler(log, p),
		mapview.NewPointsHandler(log, state),
		mapview.NewSelectHandler(log, state),
		mapview.NewProgressHandler(log, p),
		trackHandler.NewGetTrackHandler(log, state, spotifyClient, musicbrainzClient),
		collection.NewCollectionHandler(log, fsClient, state),
		web.NewHandler(log),
	}
	for _, route := range routes {
		mux.Handle(route.Pattern(), route)
	}

	return srv
}
