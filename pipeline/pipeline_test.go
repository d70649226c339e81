package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/mager/heschl/audio"
	"github.com/mager/heschl/config"
	"github.com/mager/heschl/database"
	"github.com/mager/heschl/embedder"
	"github.com/mager/heschl/heschl"
	"github.com/mager/heschl/hf"
	"github.com/mager/heschl/logger"
)

type fakeSource struct {
	tracks []heschl.Track
	err    error
}

func (f *fakeSource) Rows(ctx context.Context, req hf.RowsRequest) ([]heschl.Track, error) {
	return f.tracks, f.err
}

func (f *fakeSource) FetchAudio(ctx context.Context, url string) ([]byte, error) {
	return nil, errors.New("fetch not expected in tests")
}

type fakeInference struct {
	embedCalls atomic.Int32
}

func (f *fakeInference) Embed(ctx context.Context, sampleRate int, clips [][]float32) ([][]float32, error) {
	f.embedCalls.Add(1)
	out := make([][]float32, len(clips))
	for i, c := range clips {
		out[i] = []float32{float32(len(c)), 0.5}
	}
	return out, nil
}

func (f *fakeInference) Project(ctx context.Context, vectors [][]float32, params embedder.ProjectParams) ([][2]float64, error) {
	out := make([][2]float64, len(vectors))
	for i := range vectors {
		out[i] = [2]float64{float64(i), float64(-i)}
	}
	return out, nil
}

func testConfig() config.Config {
	return config.Config{
		Dataset:        "test/ds",
		DatasetConfig:  "default",
		DatasetSplit:   "train",
		EmbedModel:     "m",
		EmbedWorkers:   2,
		EmbedBatchSize: 2,
		SampleRate:     16000,
		UMAPNeighbors:  15,
		UMAPMinDist:    0.1,
	}
}

func testPipeline(source DatasetSource, inf Inference) (*Pipeline, *heschl.State) {
	log, _ := logger.NewTestLogger()
	state := heschl.ProvideState()
	store := database.ProvideEmbeddingStore(nil)
	p := New(testConfig(), log, source, inf, store, state)
	return p, state
}

func TestBuildSwapsMap(t *testing.T) {
	tracks := []heschl.Track{
		{Key: "a", Genre: "jazz", AudioURL: "http://x/a"},
		{Key: "b", Genre: "rock", AudioURL: "http://x/b"},
		{Key: "bad", Genre: "rock", AudioURL: "http://x/bad"},
		{Key: "c", Genre: "folk", AudioURL: "http://x/c"},
	}
	inf := &fakeInference{}
	p, state := testPipeline(&fakeSource{tracks: tracks}, inf)
	p.loadClipFn = func(ctx context.Context, tr heschl.Track) (audio.Clip, error) {
		if tr.Key == "bad" {
			return audio.Clip{}, errors.New("corrupt mp3")
		}
		return audio.Clip{Samples: []float32{0, 1, 0}, SampleRate: 16000}, nil
	}

	p.run(context.Background(), "job-1")

	prog := p.Status()
	if prog.Phase != PhaseDone {
		t.Fatalf("phase = %s (%s), want done", prog.Phase, prog.Error)
	}
	if prog.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", prog.Skipped)
	}
	if prog.Total != 4 {
		t.Errorf("total = %d, want 4", prog.Total)
	}

	m := state.Current()
	if m == nil {
		t.Fatal("no map swapped in")
	}
	if len(m.Points) != 3 {
		t.Fatalf("points = %d, want 3", len(m.Points))
	}
	for _, p := range m.Points {
		if p.Key == "bad" {
			t.Error("skipped row made it onto the map")
		}
	}
	if inf.embedCalls.Load() == 0 {
		t.Error("inference was never called")
	}
}

func TestBuildFailsOnDuplicateKey(t *testing.T) {
	tracks := []heschl.Track{
		{Key: "a", AudioURL: "http://x/a"},
		{Key: "a", AudioURL: "http://x/a2"},
	}
	p, state := testPipeline(&fakeSource{tracks: tracks}, &fakeInference{})
	p.loadClipFn = func(ctx context.Context, tr heschl.Track) (audio.Clip, error) {
		return audio.Clip{Samples: []float32{0}, SampleRate: 16000}, nil
	}

	p.run(context.Background(), "job-1")

	prog := p.Status()
	if prog.Phase != PhaseFailed {
		t.Fatalf("phase = %s, want failed", prog.Phase)
	}
	if prog.Error == "" {
		t.Error("expected an error message")
	}
	if state.Current() != nil {
		t.Error("failed build must not swap a map in")
	}
}

func TestBuildFailsOnEmptyDataset(t *testing.T) {
	p, _ := testPipeline(&fakeSource{}, &fakeInference{})

	p.run(context.Background(), "job-1")

	if prog := p.Status(); prog.Phase != PhaseFailed {
		t.Fatalf("phase = %s, want failed", prog.Phase)
	}
}

func TestBuildFailsOnDatasetError(t *testing.T) {
	p, _ := testPipeline(&fakeSource{err: fmt.Errorf("registry down")}, &fakeInference{})

	p.run(context.Background(), "job-1")

	prog := p.Status()
	if prog.Phase != PhaseFailed {
		t.Fatalf("phase = %s, want failed", prog.Phase)
	}
}

func TestStartRejectsConcurrentBuilds(t *testing.T) {
	p, _ := testPipeline(&fakeSource{}, &fakeInference{})

	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	if _, err := p.Start(); !errors.Is(err, ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	p, _ := testPipeline(&fakeSource{}, &fakeInference{})

	updates, cancel := p.Subscribe()
	defer cancel()

	// The current snapshot is delivered immediately.
	first := <-updates
	if first.Phase != PhaseIdle {
		t.Fatalf("first snapshot phase = %s, want idle", first.Phase)
	}

	p.hub.publish(Progress{JobID: "j", Phase: PhaseFetching})
	got := <-updates
	if got.Phase != PhaseFetching || got.JobID != "j" {
		t.Fatalf("got %+v", got)
	}
}
