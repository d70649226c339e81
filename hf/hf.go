// Package hf is a client for the Hugging Face datasets-server, which
// serves dataset rows over HTTP without a local copy of the dataset.
package hf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mager/heschl/config"
	"github.com/mager/heschl/heschl"
)

const pageSize = 100

type Client struct {
	BaseURL string
	Token   string

	httpClient *http.Client
}

func ProvideHF(cfg config.Config) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(cfg.HFBaseURL, "/"),
		Token:      cfg.HFToken,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

var Options = ProvideHF

// RowsRequest names the dataset slice and the columns to lift out of
// each row.
type RowsRequest struct {
	Dataset     string
	Config      string
	Split       string
	KeyColumn   string
	AudioColumn string
	LabelColumn string
	MaxRows     int
}

type rowsResponse struct {
	Rows []struct {
		RowIdx int                        `json:"row_idx"`
		Row    map[string]json.RawMessage `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

// Rows pages through the /rows endpoint and returns one Track per
// dataset row. Audio bytes are not fetched here; each track carries the
// row's audio URL for the pipeline to pull lazily.
func (c *Client) Rows(ctx context.Context, req RowsRequest) ([]heschl.Track, error) {
	var out []heschl.Track
	offset := 0
	for {
		page, err := c.rowsPage(ctx, req, offset)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Rows {
			t := trackFromRow(req, r.RowIdx, r.Row)
			out = append(out, t)
			if req.MaxRows > 0 && len(out) >= req.MaxRows {
				return out, nil
			}
		}
		offset += len(page.Rows)
		if len(page.Rows) < pageSize || offset >= page.NumRowsTotal {
			return out, nil
		}
	}
}

func (c *Client) rowsPage(ctx context.Context, req RowsRequest, offset int) (*rowsResponse, error) {
	q := url.Values{}
	q.Set("dataset", req.Dataset)
	q.Set("config", req.Config)
	q.Set("split", req.Split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(pageSize))
	u := c.BaseURL + "/rows?" + q.Encode()

	var page rowsResponse
	op := func() error {
		body, err := c.get(ctx, u)
		if err != nil {
			return err
		}
		page = rowsResponse{}
		if err := json.Unmarshal(body, &page); err != nil {
			return backoff.Permanent(fmt.Errorf("hf rows decode: %w", err))
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchAudio downloads one row's audio bytes.
func (c *Client) FetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	var body []byte
	op := func() error {
		b, err := c.get(ctx, audioURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// get performs one GET. 429 and 5xx responses come back as retryable
// errors; everything else 4xx is permanent.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("hf %s: %s", u, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, backoff.Permanent(fmt.Errorf("hf %s: %s: %s", u, resp.Status, string(body)))
	}
	return io.ReadAll(resp.Body)
}

func trackFromRow(req RowsRequest, idx int, row map[string]json.RawMessage) heschl.Track {
	t := heschl.Track{
		Key:      stringCell(row, req.KeyColumn),
		Genre:    stringCell(row, req.LabelColumn),
		Title:    stringCell(row, "title", "song", "name"),
		Artist:   stringCell(row, "artist", "artists"),
		AudioURL: audioCell(row, req.AudioColumn),
		Duration: numberCell(row, "duration", "length"),
	}
	if t.Key == "" {
		t.Key = fmt.Sprintf("%s-%d", req.Split, idx)
	}
	if t.Title == "" {
		t.Title = t.Key
	}
	return t
}

// stringCell reads the first present column as a string, tolerating
// numeric cells.
func stringCell(row map[string]json.RawMessage, cols ...string) string {
	for _, col := range cols {
		raw, ok := row[col]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			if n == float64(int64(n)) {
				return strconv.FormatInt(int64(n), 10)
			}
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
	}
	return ""
}

// numberCell reads the first present column as a float.
func numberCell(row map[string]json.RawMessage, cols ...string) float64 {
	for _, col := range cols {
		raw, ok := row[col]
		if !ok {
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			return n
		}
	}
	return 0
}

// audioCell handles the shapes datasets-server uses for audio columns:
// a bare URL string, an object with "src", or a list of such objects.
func audioCell(row map[string]json.RawMessage, col string) string {
	raw, ok := row[col]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	type variant struct {
		Src string `json:"src"`
	}
	var v variant
	if err := json.Unmarshal(raw, &v); err == nil && v.Src != "" {
		return v.Src
	}
	var vs []variant
	if err := json.Unmarshal(raw, &vs); err == nil && len(vs) > 0 {
		return vs[0].Src
	}
	return ""
}
