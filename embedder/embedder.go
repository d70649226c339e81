// Package embedder is the boundary to the inference sidecar: the
// pretrained speech model and the UMAP projection both live behind it.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mager/heschl/config"
)

type Client struct {
	BaseURL string
	Model   string

	httpClient *http.Client
}

func ProvideEmbedder(cfg config.Config) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(cfg.InferenceURL, "/"),
		Model:      cfg.EmbedModel,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

var Options = ProvideEmbedder

type embedRequest struct {
	Model      string      `json:"model"`
	SampleRate int         `json:"sample_rate"`
	Inputs     [][]float32 `json:"inputs"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
	Error   string      `json:"error,omitempty"`
}

// Embed runs one batch of PCM clips through the model and returns one
// vector per clip, in input order.
func (c *Client) Embed(ctx context.Context, sampleRate int, clips [][]float32) ([][]float32, error) {
	var out embedResponse
	err := c.post(ctx, "/embed", embedRequest{
		Model:      c.Model,
		SampleRate: sampleRate,
		Inputs:     clips,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("embed: %s", out.Error)
	}
	if len(out.Vectors) != len(clips) {
		return nil, fmt.Errorf("embed: got %d vectors for %d clips", len(out.Vectors), len(clips))
	}
	return out.Vectors, nil
}

// ProjectParams are the UMAP knobs passed through to the sidecar.
type ProjectParams struct {
	Neighbors int     `json:"n_neighbors"`
	MinDist   float64 `json:"min_dist"`
	Seed      int64   `json:"seed"`
}

type projectRequest struct {
	Vectors [][]float32   `json:"vectors"`
	Params  ProjectParams `json:"params"`
}

type projectResponse struct {
	Coords [][2]float64 `json:"coords"`
	Error  string       `json:"error,omitempty"`
}

// Project reduces the embedding matrix to 2-D. The output is
// row-aligned with the input.
func (c *Client) Project(ctx context.Context, vectors [][]float32, params ProjectParams) ([][2]float64, error) {
	var out projectResponse
	if err := c.post(ctx, "/project", projectRequest{Vectors: vectors, Params: params}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("project: %s", out.Error)
	}
	if len(out.Coords) != len(vectors) {
		return nil, fmt.Errorf("project: got %d coords for %d vectors", len(out.Coords), len(vectors))
	}
	return out.Coords, nil
}

// Healthy reports whether the sidecar answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("sidecar marshal: %w", err)
	}
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("sidecar %s: %s", path, resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("sidecar %s: %s: %s", path, resp.Status, string(b)))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("sidecar %s decode: %w", path, err))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx))
}
