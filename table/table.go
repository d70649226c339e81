// Package table implements the small set of relational operations the
// map build needs: an inner equality-join between the dataset and the
// embedding table, and ordering for the linked table view.
package table

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mager/heschl/heschl"
)

var (
	ErrDuplicateKey = errors.New("duplicate join key")
	ErrEmptyJoin    = errors.New("join produced no rows")
)

// Merge inner-joins tracks with embeddings on the track key. The key
// must be unique on both sides. The result preserves track order and
// keeps only keys present in both tables; the returned slices are
// row-aligned.
func Merge(tracks []heschl.Track, embs []heschl.Embedding) ([]heschl.Track, []heschl.Embedding, error) {
	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if seen[t.Key] {
			return nil, nil, fmt.Errorf("%w: track %q", ErrDuplicateKey, t.Key)
		}
		seen[t.Key] = true
	}

	byKey := make(map[string]heschl.Embedding, len(embs))
	for _, e := range embs {
		if _, ok := byKey[e.Key]; ok {
			return nil, nil, fmt.Errorf("%w: embedding %q", ErrDuplicateKey, e.Key)
		}
		byKey[e.Key] = e
	}

	outT := make([]heschl.Track, 0, len(tracks))
	outE := make([]heschl.Embedding, 0, len(tracks))
	for _, t := range tracks {
		e, ok := byKey[t.Key]
		if !ok {
			continue
		}
		outT = append(outT, t)
		outE = append(outE, e)
	}
	if len(outT) == 0 {
		return nil, nil, ErrEmptyJoin
	}
	return outT, outE, nil
}

// Vectors extracts the row-aligned embedding matrix after a merge. All
// vectors must share one dimension.
func Vectors(embs []heschl.Embedding) ([][]float32, error) {
	if len(embs) == 0 {
		return nil, nil
	}
	dim := len(embs[0].Vector)
	out := make([][]float32, len(embs))
	for i, e := range embs {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("embedding %q has dimension %d, want %d", e.Key, len(e.Vector), dim)
		}
		out[i] = e.Vector
	}
	return out, nil
}

// SortPoints orders points by the named column for the table view.
// Unknown columns leave the slice untouched.
func SortPoints(points []heschl.Point, column string, descending bool) {
	var less func(a, b heschl.Point) bool
	switch column {
	case "title":
		less = func(a, b heschl.Point) bool { return a.Title < b.Title }
	case "artist":
		less = func(a, b heschl.Point) bool { return a.Artist < b.Artist }
	case "genre":
		less = func(a, b heschl.Point) bool { return a.Genre < b.Genre }
	case "x":
		less = func(a, b heschl.Point) bool { return a.X < b.X }
	case "y":
		less = func(a, b heschl.Point) bool { return a.Y < b.Y }
	default:
		return
	}
	sort.SliceStable(points, func(i, j int) bool {
		if descending {
			return less(points[j], points[i])
		}
		return less(points[i], points[j])
	})
}
