package planner

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Neighbor is one other agent as seen by the avoidance solver.
type Neighbor struct {
	ID       string
	Position r3.Vec
	Velocity r3.Vec
	Radius   float64
}

// node adapts a Neighbor to kdtree.Comparable. Distance is squared Euclidean.
type node struct {
	Neighbor
}

func (n node) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return n.Position.X
	case 1:
		return n.Position.Y
	default:
		return n.Position.Z
	}
}

func (n node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return n.coord(d) - c.(node).coord(d)
}

func (n node) Dims() int { return 3 }

func (n node) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(n.Position, c.(node).Position))
}

type nodes []node

func (p nodes) Index(i int) kdtree.Comparable         { return p[i] }
func (p nodes) Len() int                              { return len(p) }
func (p nodes) Pivot(d kdtree.Dim) int                { return plane{nodes: p, Dim: d}.Pivot() }
func (p nodes) Slice(start, end int) kdtree.Interface { return p[start:end] }

type plane struct {
	kdtree.Dim
	nodes
}

func (p plane) Less(i, j int) bool { return p.nodes[i].coord(p.Dim) < p.nodes[j].coord(p.Dim) }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.nodes = p.nodes[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i] }

// Index is a throwaway spatial index over one snapshot of neighbors.
// It is built for a single planning call and never updated.
type Index struct {
	tree *kdtree.Tree
	size int
}

// BuildIndex constructs a fresh kd-tree over the given neighbors.
func BuildIndex(neighbors []Neighbor) *Index {
	if len(neighbors) == 0 {
		return &Index{}
	}
	pts := make(nodes, len(neighbors))
	for i, n := range neighbors {
		pts[i] = node{Neighbor: n}
	}
	return &Index{tree: kdtree.New(pts, false), size: len(pts)}
}

func (ix *Index) Len() int { return ix.size }

// Within returns every neighbor at distance <= radius from p, nearest first.
func (ix *Index) Within(p r3.Vec, radius float64) []Neighbor {
	if ix.tree == nil || radius < 0 {
		return nil
	}
	keep := kdtree.NewDistKeeper(radius * radius)
	ix.tree.NearestSet(keep, node{Neighbor{Position: p}})

	type hit struct {
		n    Neighbor
		dist float64
	}
	hits := make([]hit, 0, len(keep.Heap))
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		hits = append(hits, hit{n: c.Comparable.(node).Neighbor, dist: c.Dist})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].n.ID < hits[j].n.ID
	})
	out := make([]Neighbor, len(hits))
	for i, h := range hits {
		out[i] = h.n
	}
	return out
}
