package track

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/mager/heschl/heschl"
	"github.com/mager/heschl/musicbrainz"
	"github.com/mager/heschl/spotify"
	"github.com/mager/heschl/util"
	mb "github.com/mager/musicbrainz-go/musicbrainz"
	spot "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
)

// GetTrackHandler serves the detail card for one map point, enriched
// with whatever the upstream catalogs know about the track.
type GetTrackHandler struct {
	log               *zap.SugaredLogger
	state             *heschl.State
	spotifyClient     *spotify.SpotifyClient
	musicbrainzClient *musicbrainz.MusicbrainzClient
}

func (*GetTrackHandler) Pattern() string {
	return "/track"
}

// NewGetTrackHandler builds a new GetTrackHandler.
func NewGetTrackHandler(
	log *zap.SugaredLogger,
	state *heschl.State,
	spotifyClient *spotify.SpotifyClient,
	musicbrainzClient *musicbrainz.MusicbrainzClient,
) *GetTrackHandler {
	return &GetTrackHandler{
		log:               log,
		state:             state,
		spotifyClient:     spotifyClient,
		musicbrainzClient: musicbrainzClient,
	}
}

type GetTrackResponse struct {
	Track      heschl.Track `json:"track"`
	SpotifyID  string       `json:"spotify_id,omitempty"`
	ISRC       string       `json:"isrc,omitempty"`
	Image      string       `json:"image,omitempty"`
	PreviewURL string       `json:"preview_url,omitempty"`
	Popularity int          `json:"popularity,omitempty"`
	Genres     []string     `json:"genres,omitempty"`
}

// Get track
// @Summary Get track
// @Description Get one map row with catalog enrichment
// @Accept json
// @Produce json
// @Success 200 {object} GetTrackResponse
// @Router /track [get]
// @Param key query string true "Track key"
func (h *GetTrackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()
	key := r.URL.Query().Get("key")
	l := h.log

	m := h.state.Current()
	if m == nil {
		http.Error(w, `{"error":"no map built yet"}`, http.StatusNotFound)
		return
	}
	row, ok := m.Row(key)
	if !ok {
		http.Error(w, `{"error":"unknown track key"}`, http.StatusNotFound)
		return
	}

	resp := GetTrackResponse{Track: row}
	if row.Genre != "" {
		resp.Genres = []string{row.Genre}
	}

	// Enrichment is best effort; each upstream failure only costs its
	// own fields.
	full := h.searchSpotify(ctx, row)
	if full != nil {
		resp.SpotifyID = string(full.ID)
		resp.PreviewURL = full.PreviewURL
		resp.Popularity = int(full.Popularity)
		if resp.Track.Artist == "" {
			resp.Track.Artist = spotify.ConcatArtists(full.Artists)
		}
		if thumb := util.GetThumb(full.Album); thumb != nil {
			resp.Image = *thumb
		}
		if isrc := util.GetISRC(full); isrc != nil {
			resp.ISRC = *isrc
		}
	}

	if resp.ISRC != "" {
		if genres := h.genresForISRC(resp.ISRC); len(genres) > 0 {
			resp.Genres = genres
		}
	}
	if len(resp.Genres) <= 1 && full != nil {
		if genres := h.genresForArtists(ctx, full); len(genres) > 0 {
			resp.Genres = genres
		}
	}

	l.Infow("track detail", "key", key, "spotify_id", resp.SpotifyID, "isrc", resp.ISRC)

	json.NewEncoder(w).Encode(resp)
}

func (h *GetTrackHandler) searchSpotify(ctx context.Context, row heschl.Track) *spot.FullTrack {
	if !h.spotifyClient.Ready() {
		return nil
	}
	query := row.Title
	if row.Artist != "" {
		query += " artist:" + row.Artist
	}
	results, err := h.spotifyClient.Client.Search(ctx, query, spot.SearchTypeTrack, spot.Limit(1))
	if err != nil {
		h.log.Errorf("error searching spotify: %v", err)
		return nil
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil
	}
	return &results.Tracks.Tracks[0]
}

// genresForArtists is the fallback when MusicBrainz has nothing: rank
// the genres Spotify lists for the track's artists.
func (h *GetTrackHandler) genresForArtists(ctx context.Context, full *spot.FullTrack) []string {
	if !h.spotifyClient.Ready() {
		return nil
	}
	artistIDs := make([]spot.ID, 0, len(full.Artists))
	for _, artist := range full.Artists {
		artistIDs = append(artistIDs, artist.ID)
	}
	artists, err := h.spotifyClient.Client.GetArtists(ctx, artistIDs...)
	if err != nil {
		h.log.Errorf("error fetching artists: %v", err)
		return nil
	}
	return util.GetGenresForArtists(artists)
}

func (h *GetTrackHandler) genresForISRC(isrc string) []string {
	recs, err := h.musicbrainzClient.Client.SearchRecordingsByISRC(mb.SearchRecordingsByISRCRequest{
		ISRC: isrc,
	})
	if err != nil {
		h.log.Errorf("error fetching recordings: %v", err)
		return nil
	}
	if recs.Count < 1 {
		return nil
	}

	recording, err := h.musicbrainzClient.Client.GetRecording(mb.GetRecordingRequest{
		ID:       recs.Recordings[0].ID,
		Includes: []mb.Include{"artist-credits", "genres"},
	})
	if err != nil {
		h.log.Errorf("error fetching recording: %v", err)
		return nil
	}

	return getGenresForRecording(recording.Recording)
}

func getGenresForRecording(rec mb.Recording) []string {
	maxGenres := 10
	genres := make([]string, 0, maxGenres)

	// First, try recording genres
	if rec.Genres != nil && len(*rec.Genres) > 0 {
		genresSlice := *rec.Genres

		// Sort genres by Count in descending order
		sort.Slice(genresSlice, func(i, j int) bool {
			return genresSlice[i].Count > genresSlice[j].Count
		})

		for i := 0; i < maxGenres && i < len(genresSlice); i++ {
			genres = append(genres, genresSlice[i].Name)
		}
	}

	// If no genres found on recording, fall back to artist genres
	if len(genres) == 0 && rec.ArtistCredits != nil {
		genreCount := make(map[string]int)
		for _, credit := range *rec.ArtistCredits {
			if credit.Artist != nil && credit.Artist.Genres != nil {
				for _, g := range *credit.Artist.Genres {
					genreCount[g.Name] += g.Count
				}
			}
		}
		var genreList []struct {
			Name  string
			Count int
		}
		for name, count := range genreCount {
			genreList = append(genreList, struct {
				Name  string
				Count int
			}{name, count})
		}
		sort.Slice(genreList, func(i, j int) bool {
			return genreList[i].Count > genreList[j].Count
		})
		for i := 0; i < maxGenres && i < len(genreList); i++ {
			genres = append(genres, genreList[i].Name)
		}
	}

	return genres
}
