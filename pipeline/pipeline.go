// Package pipeline builds the audio map: pull dataset rows, embed each
// row's audio through the inference sidecar, merge with cached
// embeddings, project to 2-D and swap the result into the shared state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mager/heschl/audio"
	"github.com/mager/heschl/config"
	"github.com/mager/heschl/database"
	"github.com/mager/heschl/embedder"
	"github.com/mager/heschl/heschl"
	"github.com/mager/heschl/hf"
	"github.com/mager/heschl/table"
	"go.uber.org/zap"
)

// Clips longer than this are truncated before embedding.
const maxClipSeconds = 30

var ErrBusy = errors.New("a build is already running")

// DatasetSource is the dataset registry boundary.
type DatasetSource interface {
	Rows(ctx context.Context, req hf.RowsRequest) ([]heschl.Track, error)
	FetchAudio(ctx context.Context, url string) ([]byte, error)
}

// Inference is the model sidecar boundary.
type Inference interface {
	Embed(ctx context.Context, sampleRate int, clips [][]float32) ([][]float32, error)
	Project(ctx context.Context, vectors [][]float32, params embedder.ProjectParams) ([][2]float64, error)
}

type Pipeline struct {
	cfg    config.Config
	log    *zap.SugaredLogger
	source DatasetSource
	inf    Inference
	store  *database.EmbeddingStore
	state  *heschl.State

	hub *progressHub

	// loadClipFn is swappable so tests can feed clips without real
	// MP3 bytes.
	loadClipFn func(context.Context, heschl.Track) (audio.Clip, error)

	mu      sync.Mutex
	running bool
}

func New(
	cfg config.Config,
	log *zap.SugaredLogger,
	source DatasetSource,
	inf Inference,
	store *database.EmbeddingStore,
	state *heschl.State,
) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		log:    log,
		source: source,
		inf:    inf,
		store:  store,
		state:  state,
		hub:    newProgressHub(),
	}
	p.loadClipFn = p.loadClip
	return p
}

var Options = New

// Start kicks off a build in the background. Only one build runs at a
// time.
func (p *Pipeline) Start() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return "", ErrBusy
	}
	p.running = true

	jobID := newJobID()
	go func() {
		defer func() {
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
		}()
		p.run(context.Background(), jobID)
	}()
	return jobID, nil
}

// Status returns the latest progress snapshot.
func (p *Pipeline) Status() Progress {
	return p.hub.snapshot()
}

// Subscribe streams progress snapshots until the returned cancel func
// is called.
func (p *Pipeline) Subscribe() (<-chan Progress, func()) {
	return p.hub.subscribe()
}

func (p *Pipeline) run(ctx context.Context, jobID string) {
	log := p.log.With("job_id", jobID, "dataset", p.cfg.Dataset, "model", p.cfg.EmbedModel)
	prog := Progress{JobID: jobID, Phase: PhaseFetching, Started: time.Now().UTC()}
	p.hub.publish(prog)

	m, err := p.build(ctx, jobID, &prog)
	if err != nil {
		log.Errorw("build failed", "error", err)
		prog.Phase = PhaseFailed
		prog.Error = err.Error()
		prog.Ended = time.Now().UTC()
		p.hub.publish(prog)
		return
	}

	p.state.Swap(m)
	prog.Phase = PhaseDone
	prog.Ended = time.Now().UTC()
	p.hub.publish(prog)
	log.Infow("map built", "points", len(m.Points), "embedded", prog.Embedded, "cached", prog.Cached, "skipped", prog.Skipped)
}

func (p *Pipeline) build(ctx context.Context, jobID string, prog *Progress) (*heschl.Map, error) {
	tracks, err := p.source.Rows(ctx, hf.RowsRequest{
		Dataset:     p.cfg.Dataset,
		Config:      p.cfg.DatasetConfig,
		Split:       p.cfg.DatasetSplit,
		KeyColumn:   p.cfg.KeyColumn,
		AudioColumn: p.cfg.AudioColumn,
		LabelColumn: p.cfg.LabelColumn,
		MaxRows:     p.cfg.MaxRows,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	if len(tracks) == 0 {
		return nil, errors.New("dataset has no rows")
	}
	prog.Total = len(tracks)
	p.hub.publish(*prog)

	if err := p.store.Init(ctx); err != nil {
		return nil, err
	}
	cached, err := p.store.Load(ctx, p.cfg.Dataset, p.cfg.EmbedModel)
	if err != nil {
		return nil, err
	}

	var missing []heschl.Track
	for _, t := range tracks {
		if _, ok := cached[t.Key]; !ok {
			missing = append(missing, t)
		}
	}
	prog.Cached = len(tracks) - len(missing)
	prog.Phase = PhaseEmbedding
	p.hub.publish(*prog)

	fresh, skipped := p.embedAll(ctx, missing, prog)
	prog.Skipped = skipped
	if err := p.store.Save(ctx, p.cfg.Dataset, fresh); err != nil {
		return nil, err
	}

	embs := make([]heschl.Embedding, 0, len(cached)+len(fresh))
	for _, e := range cached {
		embs = append(embs, e)
	}
	embs = append(embs, fresh...)

	prog.Phase = PhaseMerging
	p.hub.publish(*prog)
	tracks, embs, err = table.Merge(tracks, embs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	vectors, err := table.Vectors(embs)
	if err != nil {
		return nil, err
	}

	prog.Phase = PhaseProjecting
	p.hub.publish(*prog)
	coords, err := p.inf.Project(ctx, vectors, embedder.ProjectParams{
		Neighbors: p.cfg.UMAPNeighbors,
		MinDist:   p.cfg.UMAPMinDist,
	})
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	points := make([]heschl.Point, len(tracks))
	for i, t := range tracks {
		points[i] = heschl.Point{
			Key:    t.Key,
			X:      coords[i][0],
			Y:      coords[i][1],
			Title:  t.Title,
			Artist: t.Artist,
			Genre:  t.Genre,
		}
	}
	return heschl.NewMap(p.cfg.Dataset, p.cfg.EmbedModel, points, tracks), nil
}

type embedResult struct {
	embs    []heschl.Embedding
	skipped int
}

// embedAll runs the deferred per-row transform (fetch bytes, decode,
// resample) and batch inference across a small worker pool. Rows whose
// audio cannot be fetched or decoded are skipped, not fatal.
func (p *Pipeline) embedAll(ctx context.Context, tracks []heschl.Track, prog *Progress) ([]heschl.Embedding, int) {
	workers := p.cfg.EmbedWorkers
	if workers < 1 {
		workers = 1
	}
	batchSize := p.cfg.EmbedBatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	in := make(chan heschl.Track)
	results := make(chan embedResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.embedWorker(ctx, in, results, batchSize)
		}()
	}
	go func() {
		for _, t := range tracks {
			in <- t
		}
		close(in)
		wg.Wait()
		close(results)
	}()

	var all []heschl.Embedding
	skipped := 0
	for r := range results {
		all = append(all, r.embs...)
		skipped += r.skipped
		prog.Embedded = len(all)
		prog.Skipped = skipped
		p.hub.publish(*prog)
	}
	return all, skipped
}

func (p *Pipeline) embedWorker(ctx context.Context, in <-chan heschl.Track, results chan<- embedResult, batchSize int) {
	var keys []string
	var clips [][]float32
	skipped := 0

	flush := func() {
		if len(clips) == 0 && skipped == 0 {
			return
		}
		r := embedResult{skipped: skipped}
		skipped = 0
		if len(clips) > 0 {
			vectors, err := p.inf.Embed(ctx, p.cfg.SampleRate, clips)
			if err != nil {
				p.log.Errorw("embed batch failed", "batch", len(clips), "error", err)
				r.skipped += len(clips)
			} else {
				for i, v := range vectors {
					r.embs = append(r.embs, heschl.Embedding{
						Key:    keys[i],
						Model:  p.cfg.EmbedModel,
						Vector: v,
					})
				}
			}
			keys = keys[:0]
			clips = clips[:0]
		}
		results <- r
	}

	for t := range in {
		clip, err := p.loadClipFn(ctx, t)
		if err != nil {
			p.log.Warnw("skipping row", "key", t.Key, "error", err)
			skipped++
			continue
		}
		keys = append(keys, t.Key)
		clips = append(clips, clip.Samples)
		if len(clips) >= batchSize {
			flush()
		}
	}
	flush()
}

// loadClip is the lazy audio transform: bytes are pulled and decoded
// only here, for the row being embedded.
func (p *Pipeline) loadClip(ctx context.Context, t heschl.Track) (audio.Clip, error) {
	if t.AudioURL == "" {
		return audio.Clip{}, errors.New("row has no audio")
	}
	data, err := p.source.FetchAudio(ctx, t.AudioURL)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("fetch audio: %w", err)
	}
	clip, err := audio.Decode(data)
	if err != nil {
		return audio.Clip{}, err
	}
	clip = audio.Resample(clip, p.cfg.SampleRate)
	if max := maxClipSeconds * p.cfg.SampleRate; len(clip.Samples) > max {
		clip.Samples = clip.Samples[:max]
	}
	return clip, nil
}
