package table

import (
	"errors"
	"testing"

	"github.com/mager/heschl/heschl"
)

func tk(key string) heschl.Track {
	return heschl.Track{Key: key, Title: "t-" + key}
}

func emb(key string, vec ...float32) heschl.Embedding {
	return heschl.Embedding{Key: key, Model: "m", Vector: vec}
}

func TestMerge(t *testing.T) {
	tracks := []heschl.Track{tk("a"), tk("b"), tk("c")}
	embs := []heschl.Embedding{emb("c", 3), emb("a", 1), emb("b", 2)}

	outT, outE, err := Merge(tracks, embs)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(outT) != 3 || len(outE) != 3 {
		t.Fatalf("got %d tracks, %d embeddings, want 3 each", len(outT), len(outE))
	}
	// Track order wins.
	for i, want := range []string{"a", "b", "c"} {
		if outT[i].Key != want {
			t.Errorf("track %d: got %q, want %q", i, outT[i].Key, want)
		}
		if outE[i].Key != want {
			t.Errorf("embedding %d: got %q, want %q", i, outE[i].Key, want)
		}
	}
}

func TestMergeDropsUnmatched(t *testing.T) {
	tracks := []heschl.Track{tk("a"), tk("b")}
	embs := []heschl.Embedding{emb("b", 2), emb("z", 9)}

	outT, _, err := Merge(tracks, embs)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(outT) != 1 || outT[0].Key != "b" {
		t.Fatalf("got %v, want just b", outT)
	}
}

func TestMergeDuplicateKeys(t *testing.T) {
	cases := []struct {
		name   string
		tracks []heschl.Track
		embs   []heschl.Embedding
	}{
		{
			name:   "duplicate track key",
			tracks: []heschl.Track{tk("a"), tk("a")},
			embs:   []heschl.Embedding{emb("a", 1)},
		},
		{
			name:   "duplicate embedding key",
			tracks: []heschl.Track{tk("a")},
			embs:   []heschl.Embedding{emb("a", 1), emb("a", 2)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Merge(tc.tracks, tc.embs)
			if !errors.Is(err, ErrDuplicateKey) {
				t.Fatalf("got %v, want ErrDuplicateKey", err)
			}
		})
	}
}

func TestMergeEmptyJoin(t *testing.T) {
	_, _, err := Merge([]heschl.Track{tk("a")}, []heschl.Embedding{emb("b", 1)})
	if !errors.Is(err, ErrEmptyJoin) {
		t.Fatalf("got %v, want ErrEmptyJoin", err)
	}
}

func TestVectors(t *testing.T) {
	vecs, err := Vectors([]heschl.Embedding{emb("a", 1, 2), emb("b", 3, 4)})
	if err != nil {
		t.Fatalf("vectors: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected shape: %v", vecs)
	}

	_, err = Vectors([]heschl.Embedding{emb("a", 1, 2), emb("b", 3)})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestSortPoints(t *testing.T) {
	points := []heschl.Point{
		{Key: "1", Title: "b", X: 2},
		{Key: "2", Title: "a", X: 1},
		{Key: "3", Title: "c", X: 3},
	}

	SortPoints(points, "title", false)
	if points[0].Title != "a" || points[2].Title != "c" {
		t.Errorf("sort by title: %v", points)
	}

	SortPoints(points, "x", true)
	if points[0].X != 3 {
		t.Errorf("sort by x desc: %v", points)
	}

	// Unknown column is a no-op.
	before := points[0].Key
	SortPoints(points, "nope", false)
	if points[0].Key != before {
		t.Error("unknown column should not reorder")
	}
}
