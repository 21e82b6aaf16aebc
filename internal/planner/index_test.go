package planner

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestIndexWithinRadiusSortedByDistance(t *testing.T) {
	ix := BuildIndex([]Neighbor{
		{ID: "far", Position: r3.Vec{X: 3}},
		{ID: "edge", Position: r3.Vec{Y: 0.99}},
		{ID: "near", Position: r3.Vec{Z: 0.5}},
		{ID: "mid", Position: r3.Vec{X: 0.6, Y: 0.6}},
	})
	if ix.Len() != 4 {
		t.Fatalf("unexpected index size: %d", ix.Len())
	}

	got := ix.Within(r3.Vec{}, 1.0)
	want := []string{"near", "mid", "edge"}
	if len(got) != len(want) {
		t.Fatalf("unexpected hits: %+v", got)
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("hit %d: got %q want %q", i, got[i].ID, want[i])
		}
	}
}

func TestIndexEmpty(t *testing.T) {
	ix := BuildIndex(nil)
	if hits := ix.Within(r3.Vec{}, 10); len(hits) != 0 {
		t.Fatalf("expected no hits from empty index, got %v", hits)
	}
}

func TestIndexMatchesLinearScan(t *testing.T) {
	var pts []Neighbor
	for i := 0; i < 40; i++ {
		f := float64(i)
		pts = append(pts, Neighbor{
			ID:       string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Position: r3.Vec{X: f * 0.13, Y: float64(i%7) * 0.21, Z: float64(i%3) * 0.4},
		})
	}
	ix := BuildIndex(pts)
	q := r3.Vec{X: 2, Y: 0.5, Z: 0.3}
	radius := 0.9

	want := 0
	for _, p := range pts {
		if r3.Norm(r3.Sub(p.Position, q)) <= radius {
			want++
		}
	}
	if got := len(ix.Within(q, radius)); got != want {
		t.Fatalf("kd-tree found %d, linear scan found %d", got, want)
	}
}
