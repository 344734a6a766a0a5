// Package aabbtree implements a bounding volume hierarchy over triangles for ray picking on meshes.
package aabbtree

import (
	"cmp"
	"slices"
	"time"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"github.com/skeletex/cogs/logging"
	"github.com/skeletex/cogs/metrics"
	"github.com/skeletex/cogs/spatialmath"
)

const (
	// MinLeafElements is the number of triangles at or below which a node is not split.
	MinLeafElements = 10
	// DefaultMaxDepth bounds the hierarchy for triangles that no split plane separates.
	DefaultMaxDepth = 32
)

const (
	noChild = -1
	// boxSlack keeps hits lying exactly on a split plane from being rejected by rounding.
	boxSlack = 1e-9
)

// node is either internal with both children set, or a leaf owning tris[first:first+count].
type node struct {
	box         spatialmath.Box
	left, right int32
	first       int32
	count       int32
}

func (n *node) isLeaf() bool {
	return n.left == noChild
}

// Hit is a ray hitting a triangle.
type Hit struct {
	Point    r3.Vector
	Distance float64
	Triangle int
}

// Hierarchy is an arena backed tree of boxes over a fixed set of triangles. A triangle that
// straddles a split plane is stored on both sides.
type Hierarchy struct {
	logger    logging.Logger
	maxDepth  int
	triangles []spatialmath.Triangle
	nodes     []node
	tris      []int32
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithMaxDepth sets the depth at which nodes become leaves regardless of their size.
func WithMaxDepth(depth int) Option {
	return func(h *Hierarchy) {
		h.maxDepth = depth
	}
}

// New builds a hierarchy over the triangles inside box. The box is grown to contain every
// triangle. A nil logger falls back to the global one.
func New(triangles []spatialmath.Triangle, box spatialmath.Box, logger logging.Logger, opts ...Option) *Hierarchy {
	if logger == nil {
		logger = logging.Global()
	}
	h := &Hierarchy{
		logger:    logger.Sublogger("aabb_tree"),
		maxDepth:  DefaultMaxDepth,
		triangles: slices.Clone(triangles),
	}
	for _, opt := range opts {
		opt(h)
	}
	if len(triangles) == 0 {
		return h
	}

	start := time.Now()
	for _, t := range triangles {
		box = box.Union(t.BoundingBox())
	}
	all := make([]int32, len(triangles))
	for i := range all {
		all[i] = int32(i)
	}
	h.split(all, box, 0, 0)

	metrics.InstrumentBuild(metrics.AabbTree, start, len(h.nodes), len(triangles))
	h.logger.Debugw("built aabb tree", "triangles", len(triangles), "nodes", len(h.nodes),
		"stored", len(h.tris), "duration", time.Since(start))
	return h
}

// distribute sorts the triangles to the sides of the plane through the center of box that is
// perpendicular to axis. Triangles touching the plane go to both sides.
func (h *Hierarchy) distribute(members []int32, box spatialmath.Box, axis spatialmath.Axis) (left, right []int32) {
	center := box.Center()
	normal := axis.Set(r3.Vector{}, 1)
	split := axis.Of(center)
	for _, idx := range members {
		t := h.triangles[idx]
		switch {
		case t.IntersectsPlane(center, normal):
			left = append(left, idx)
			right = append(right, idx)
		case axis.Of(t.Centroid()) < split:
			left = append(left, idx)
		default:
			right = append(right, idx)
		}
	}
	return left, right
}

// split appends the node for members inside box and returns its arena index. The split axis is
// (depth+cycle) mod 3. A split that leaves one side as large as the node advances cycle and tries
// the next axis; after three such failures the node becomes a leaf.
func (h *Hierarchy) split(members []int32, box spatialmath.Box, depth, cycle int) int32 {
	idx := int32(len(h.nodes))
	h.nodes = append(h.nodes, node{box: box, left: noChild, right: noChild})

	if len(members) > MinLeafElements && depth < h.maxDepth {
		for range 3 {
			axis := spatialmath.AxisForDepth(depth + cycle)
			left, right := h.distribute(members, box, axis)
			if len(left) < len(members) && len(right) < len(members) {
				lowerBox, upperBox := box.Split(axis, axis.Of(box.Center()))
				l := h.split(left, lowerBox, depth+1, cycle)
				r := h.split(right, upperBox, depth+1, cycle)
				h.nodes[idx].left, h.nodes[idx].right = l, r
				return idx
			}
			cycle++
		}
	}

	h.nodes[idx].first = int32(len(h.tris))
	h.nodes[idx].count = int32(len(members))
	h.tris = append(h.tris, members...)
	return idx
}

// Hits returns every triangle hit by the ray in front of its origin, once per triangle, nearest
// first. Equal distances are ordered by triangle index.
func (h *Hierarchy) Hits(ray spatialmath.Ray) []Hit {
	var hits []Hit
	if len(h.nodes) == 0 || ray.IsDegenerate() {
		metrics.InstrumentQuery(metrics.AabbTree, "intersections", 0)
		return hits
	}
	stack := []int32{0}
	for len(stack) > 0 {
		n := &h.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if !ray.IntersectsBox(n.box.Inflate(boxSlack)) {
			continue
		}
		if !n.isLeaf() {
			stack = append(stack, n.left, n.right)
			continue
		}
		for _, ti := range h.tris[n.first : n.first+n.count] {
			if t, p, ok := h.triangles[ti].IntersectRay(ray); ok {
				hits = append(hits, Hit{Point: p, Distance: t, Triangle: int(ti)})
			}
		}
	}
	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Triangle, b.Triangle)
	})
	hits = lo.UniqBy(hits, func(hit Hit) int { return hit.Triangle })
	metrics.InstrumentQuery(metrics.AabbTree, "intersections", len(hits))
	return hits
}

// Intersections returns the points where the ray enters each triangle it hits, nearest first.
func (h *Hierarchy) Intersections(ray spatialmath.Ray) []r3.Vector {
	return lo.Map(h.Hits(ray), func(hit Hit, _ int) r3.Vector { return hit.Point })
}

// FirstIntersection returns the hit nearest to the ray origin.
func (h *Hierarchy) FirstIntersection(ray spatialmath.Ray) (Hit, bool) {
	hits := h.Hits(ray)
	if len(hits) == 0 {
		return Hit{}, false
	}
	return hits[0], true
}

// Size returns the number of triangles.
func (h *Hierarchy) Size() int {
	return len(h.triangles)
}

// NodeCount returns the number of nodes, zero when there are no triangles.
func (h *Hierarchy) NodeCount() int {
	return len(h.nodes)
}

// StoredCount returns the number of triangle references held by leaves. It exceeds Size when
// triangles straddle split planes.
func (h *Hierarchy) StoredCount() int {
	return len(h.tris)
}

// Bounds returns the root box, empty when there are no triangles.
func (h *Hierarchy) Bounds() spatialmath.Box {
	if len(h.nodes) == 0 {
		return spatialmath.EmptyBox()
	}
	return h.nodes[0].box
}
