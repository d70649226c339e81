package heschl

import (
	"sync"
	"time"
)

// Track is one row of the source dataset.
type Track struct {
	Key      string  `json:"key"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Genre    string  `json:"genre"`
	AudioURL string  `json:"audio_url"`
	Duration float64 `json:"duration"`
}

// Embedding is a fixed-length vector summarizing one track, produced by
// the pretrained model behind the inference sidecar.
type Embedding struct {
	Key    string
	Model  string
	Vector []float32
}

// Point is one projected track on the 2-D map.
type Point struct {
	Key    string  `json:"key"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	Genre  string  `json:"genre"`
}

// Map is a built audio map: every dataset row with its projection
// coordinates. Maps are immutable once built; a rebuild swaps in a
// whole new one.
type Map struct {
	Dataset string    `json:"dataset"`
	Model   string    `json:"model"`
	Built   time.Time `json:"built"`
	Points  []Point   `json:"points"`

	rows  map[string]Track
	index map[string]int
}

// NewMap builds a Map from row-aligned points and tracks. The two slices
// share order; callers are expected to have merged them on the track key
// already.
func NewMap(dataset, model string, points []Point, tracks []Track) *Map {
	m := &Map{
		Dataset: dataset,
		Model:   model,
		Built:   time.Now(),
		Points:  points,
		rows:    make(map[string]Track, len(tracks)),
		index:   make(map[string]int, len(points)),
	}
	for _, t := range tracks {
		m.rows[t.Key] = t
	}
	for i, p := range points {
		m.index[p.Key] = i
	}
	return m
}

// Row returns the dataset row for a key.
func (m *Map) Row(key string) (Track, bool) {
	t, ok := m.rows[key]
	return t, ok
}

// Select returns the points for the given selection, preserving map
// order. Unknown keys are ignored. An empty selection selects
// everything, matching the untouched-plot state of the frontend.
func (m *Map) Select(keys []string) []Point {
	if len(keys) == 0 {
		out := make([]Point, len(m.Points))
		copy(out, m.Points)
		return out
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	out := make([]Point, 0, len(keys))
	for _, p := range m.Points {
		if want[p.Key] {
			out = append(out, p)
		}
	}
	return out
}

// State holds the current map for the handlers. The pipeline swaps in a
// new map when a build finishes.
type State struct {
	mu  sync.RWMutex
	cur *Map
}

func ProvideState() *State {
	return &State{}
}

// Current returns the active map, or nil before the first build.
func (s *State) Current() *Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Swap replaces the active map.
func (s *State) Swap(m *Map) {
	s.mu.Lock()
	s.cur = m
	s.mu.Unlock()
}

var Options = ProvideState
