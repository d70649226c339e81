package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// Config is processed from HESCHL_* environment variables.
type Config struct {
	Port        string `default:"8080"`
	DatabaseURL string

	// Inference sidecar (embeddings + UMAP projection).
	InferenceURL string `default:"http://localhost:5050"`

	// Dataset registry (Hugging Face datasets-server).
	HFBaseURL     string `default:"https://datasets-server.huggingface.co"`
	HFToken       string
	Dataset       string `default:"marsyas/gtzan"`
	DatasetConfig string `default:"default"`
	DatasetSplit  string `default:"train"`
	AudioColumn   string `default:"audio"`
	KeyColumn     string `default:"id"`
	LabelColumn   string `default:"genre"`
	MaxRows       int    `default:"1000"`

	// Embedding pipeline. EmbedWorkers stays at 1 unless parallel
	// per-row embedding is explicitly enabled.
	EmbedModel     string `default:"wav2vec2-base"`
	EmbedWorkers   int    `default:"1"`
	EmbedBatchSize int    `default:"16"`
	SampleRate     int    `default:"16000"`

	// UMAP parameters passed through to the sidecar.
	UMAPNeighbors int     `default:"15"`
	UMAPMinDist   float64 `default:"0.1"`

	SpotifyID        string
	SpotifySecret    string
	FirestoreProject string `default:"beatbrain-dev"`
}

func ProvideConfig() Config {
	var cfg Config
	err := envconfig.Process("heschl", &cfg)
	if err != nil {
		log.Fatal(err.Error())
	}
	return cfg
}

var Options = ProvideConfig
