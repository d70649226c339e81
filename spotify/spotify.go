package spotify

import (
	"context"

	"github.com/mager/heschl/config"
	spot "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

// SpotifyClient wraps an app-authorized Spotify client. heschl has no
// per-user flows, so the client-credentials grant is enough.
type SpotifyClient struct {
	Client *spot.Client
	ID     string
	Secret string
}

// Ready reports whether the client can make API calls.
func (c *SpotifyClient) Ready() bool {
	return c != nil && c.Client != nil
}

func ProvideSpotify(cfg config.Config, log *zap.SugaredLogger) *SpotifyClient {
	c := SpotifyClient{ID: cfg.SpotifyID, Secret: cfg.SpotifySecret}

	if cfg.SpotifyID == "" || cfg.SpotifySecret == "" {
		log.Info("spotify credentials not set, track enrichment disabled")
		return &c
	}

	ctx := context.Background()
	conf := &clientcredentials.Config{
		ClientID:     cfg.SpotifyID,
		ClientSecret: cfg.SpotifySecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := conf.Token(ctx)
	if err != nil {
		log.Errorw("spotify token request failed", "error", err)
		return &c
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	c.Client = spot.New(httpClient)
	return &c
}

var Options = ProvideSpotify
