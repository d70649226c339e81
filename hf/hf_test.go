package hf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rows" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("dataset") != "test/ds" || q.Get("split") != "train" {
			t.Errorf("unexpected query: %v", q)
		}
		fmt.Fprint(w, `{
			"rows": [
				{"row_idx": 0, "row": {"id": "s1", "genre": "jazz", "title": "Blue", "audio": [{"src": "http://x/a.mp3", "type": "audio/mpeg"}]}},
				{"row_idx": 1, "row": {"id": 7, "genre": "rock", "audio": {"src": "http://x/b.mp3"}}},
				{"row_idx": 2, "row": {"genre": "folk", "audio": "http://x/c.mp3"}}
			],
			"num_rows_total": 3
		}`)
	}))
	defer srv.Close()

	tracks, err := testClient(srv.URL).Rows(context.Background(), RowsRequest{
		Dataset:     "test/ds",
		Config:      "default",
		Split:       "train",
		KeyColumn:   "id",
		AudioColumn: "audio",
		LabelColumn: "genre",
	})
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", len(tracks))
	}

	if tracks[0].Key != "s1" || tracks[0].Genre != "jazz" || tracks[0].Title != "Blue" {
		t.Errorf("track 0: %+v", tracks[0])
	}
	if tracks[0].AudioURL != "http://x/a.mp3" {
		t.Errorf("track 0 audio: %q", tracks[0].AudioURL)
	}

	// Numeric key becomes a string.
	if tracks[1].Key != "7" {
		t.Errorf("track 1 key: %q", tracks[1].Key)
	}
	if tracks[1].AudioURL != "http://x/b.mp3" {
		t.Errorf("track 1 audio: %q", tracks[1].AudioURL)
	}

	// Missing key column falls back to the row index.
	if tracks[2].Key != "train-2" {
		t.Errorf("track 2 key: %q", tracks[2].Key)
	}
	if tracks[2].AudioURL != "http://x/c.mp3" {
		t.Errorf("track 2 audio: %q", tracks[2].AudioURL)
	}
}

func TestRowsMaxRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := rowsResponse{NumRowsTotal: 500}
		for i := 0; i < pageSize; i++ {
			resp.Rows = append(resp.Rows, struct {
				RowIdx int                        `json:"row_idx"`
				Row    map[string]json.RawMessage `json:"row"`
			}{RowIdx: i, Row: map[string]json.RawMessage{
				"id": json.RawMessage(fmt.Sprintf(`"s%d"`, i)),
			}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tracks, err := testClient(srv.URL).Rows(context.Background(), RowsRequest{
		Dataset: "test/ds", Config: "default", Split: "train",
		KeyColumn: "id", AudioColumn: "audio", MaxRows: 10,
	})
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(tracks) != 10 {
		t.Fatalf("got %d tracks, want 10", len(tracks))
	}
}

func TestRowsRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"rows": [{"row_idx": 0, "row": {"id": "a"}}], "num_rows_total": 1}`)
	}))
	defer srv.Close()

	tracks, err := testClient(srv.URL).Rows(context.Background(), RowsRequest{
		Dataset: "test/ds", Config: "default", Split: "train", KeyColumn: "id",
	})
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(tracks) != 1 || calls.Load() != 2 {
		t.Fatalf("tracks=%d calls=%d, want 1 track after 2 calls", len(tracks), calls.Load())
	}
}

func TestRowsPermanentClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such dataset", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Rows(context.Background(), RowsRequest{
		Dataset: "test/none", Config: "default", Split: "train",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, 4xx should not be retried", calls.Load())
	}
}

func TestFetchAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		w.Write([]byte("mp3bytes"))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.Token = "tok"
	data, err := c.FetchAudio(context.Background(), srv.URL+"/audio/a.mp3")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "mp3bytes" {
		t.Fatalf("data = %q", data)
	}
}
