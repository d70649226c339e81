package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is where a build currently is.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetching   Phase = "fetching"
	PhaseEmbedding  Phase = "embedding"
	PhaseMerging    Phase = "merging"
	PhaseProjecting Phase = "projecting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Progress is a snapshot of the running (or last) build, streamed to
// the frontend over the progress websocket.
type Progress struct {
	JobID    string    `json:"job_id"`
	Phase    Phase     `json:"phase"`
	Total    int       `json:"total"`
	Embedded int       `json:"embedded"`
	Cached   int       `json:"cached"`
	Skipped  int       `json:"skipped"`
	Started  time.Time `json:"started"`
	Ended    time.Time `json:"ended"`
	Error    string    `json:"error,omitempty"`
}

func newJobID() string {
	return uuid.New().String()
}

// progressHub fans progress snapshots out to websocket subscribers.
type progressHub struct {
	mu   sync.Mutex
	last Progress
	subs map[chan Progress]bool
}

func newProgressHub() *progressHub {
	return &progressHub{
		last: Progress{Phase: PhaseIdle},
		subs: make(map[chan Progress]bool),
	}
}

func (h *progressHub) publish(p Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = p
	for ch := range h.subs {
		// Slow subscribers miss intermediate snapshots rather than
		// stalling the build.
		select {
		case ch <- p:
		default:
		}
	}
}

func (h *progressHub) snapshot() Progress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// subscribe registers a listener. The returned func unsubscribes.
func (h *progressHub) subscribe() (<-chan Progress, func()) {
	ch := make(chan Progress, 16)
	h.mu.Lock()
	h.subs[ch] = true
	ch <- h.last
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}
