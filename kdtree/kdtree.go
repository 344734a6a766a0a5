// Package kdtree implements a three dimensional k-d tree holding one point per node, used for
// axis aligned range queries and nearest neighbor lookups.
package kdtree

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"github.com/skeletex/cogs/logging"
	"github.com/skeletex/cogs/metrics"
	"github.com/skeletex/cogs/pointcloud"
	"github.com/skeletex/cogs/spatialmath"
)

type node struct {
	position r3.Vector
	index    int
}

// KdTree is a pointerless k-d tree. Every subrange of nodes stores its median at the middle, the
// lower half on its left and the upper half on its right. The split axis cycles x, y, z with depth.
type KdTree struct {
	logger  logging.Logger
	nodes   []node
	depth   int
	sources []pointcloud.Snapshot
}

// New returns an empty tree. A nil logger falls back to the global one.
func New(logger logging.Logger) *KdTree {
	if logger == nil {
		logger = logging.Global()
	}
	return &KdTree{logger: logger.Sublogger("kdtree"), depth: -1}
}

// Initialize rebuilds the tree from scratch over the positions of the clouds. Point indices run
// over the clouds in argument order.
func (k *KdTree) Initialize(clouds ...*pointcloud.PointCloud) {
	k.sources = lo.Map(clouds, func(c *pointcloud.PointCloud, _ int) pointcloud.Snapshot {
		return c.Snapshot()
	})
	k.build(lo.FlatMap(clouds, func(c *pointcloud.PointCloud, _ int) []r3.Vector {
		return c.Positions()
	}))
}

// InitializePositions rebuilds the tree from scratch over the positions.
func (k *KdTree) InitializePositions(positions []r3.Vector) {
	k.sources = nil
	k.build(positions)
}

func (k *KdTree) build(positions []r3.Vector) {
	start := time.Now()
	k.nodes = make([]node, len(positions))
	for i, p := range positions {
		k.nodes[i] = node{position: p, index: i}
	}
	k.depth = -1
	k.makeNodes(k.nodes, 0)

	metrics.InstrumentBuild(metrics.KdTree, start, len(k.nodes), len(k.nodes))
	k.logger.Debugw("built kdtree", "points", len(k.nodes), "depth", k.depth, "duration", time.Since(start))
}

func (k *KdTree) makeNodes(nodes []node, depth int) {
	if len(nodes) == 0 {
		return
	}
	k.depth = max(k.depth, depth)
	axis := spatialmath.AxisForDepth(depth)
	slices.SortFunc(nodes, func(a, b node) int {
		if c := cmp.Compare(axis.Of(a.position), axis.Of(b.position)); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})
	mid := len(nodes) / 2
	k.makeNodes(nodes[:mid], depth+1)
	k.makeNodes(nodes[mid+1:], depth+1)
}

// search visits every node whose subtree may intersect the box, stopping when visit returns false.
func (k *KdTree) search(box spatialmath.Box, visit func(n node) bool) {
	var rec func(nodes []node, depth int) bool
	rec = func(nodes []node, depth int) bool {
		if len(nodes) == 0 {
			return true
		}
		mid := len(nodes) / 2
		n := nodes[mid]
		if box.ContainsPoint(n.position) && !visit(n) {
			return false
		}
		axis := spatialmath.AxisForDepth(depth)
		split := axis.Of(n.position)
		if axis.Of(box.Min) <= split && !rec(nodes[:mid], depth+1) {
			return false
		}
		if axis.Of(box.Max) >= split && !rec(nodes[mid+1:], depth+1) {
			return false
		}
		return true
	}
	rec(k.nodes, 0)
}

// IsPointInRange reports whether any point lies inside the box, boundary included.
func (k *KdTree) IsPointInRange(box spatialmath.Box) bool {
	found := false
	k.search(box, func(node) bool {
		found = true
		return false
	})
	metrics.InstrumentQuery(metrics.KdTree, "is_point_in_range", lo.Ternary(found, 1, 0))
	return found
}

// PointsInRange returns the sorted indices of all points inside the box, boundary included.
func (k *KdTree) PointsInRange(box spatialmath.Box) []int {
	var found []int
	k.search(box, func(n node) bool {
		found = append(found, n.index)
		return true
	})
	slices.Sort(found)
	metrics.InstrumentQuery(metrics.KdTree, "points_in_range", len(found))
	return found
}

// Nearest returns the index of the point closest to p and its distance, or -1 for an empty tree.
// Ties go to the lower index.
func (k *KdTree) Nearest(p r3.Vector) (int, float64) {
	best, bestDist2 := -1, math.Inf(1)
	var rec func(nodes []node, depth int)
	rec = func(nodes []node, depth int) {
		if len(nodes) == 0 {
			return
		}
		mid := len(nodes) / 2
		n := nodes[mid]
		if d := n.position.Sub(p).Norm2(); d < bestDist2 || (d == bestDist2 && n.index < best) {
			best, bestDist2 = n.index, d
		}
		axis := spatialmath.AxisForDepth(depth)
		toPlane := axis.Of(p) - axis.Of(n.position)
		near, far := nodes[:mid], nodes[mid+1:]
		if toPlane > 0 {
			near, far = far, near
		}
		rec(near, depth+1)
		if toPlane*toPlane <= bestDist2 {
			rec(far, depth+1)
		}
	}
	rec(k.nodes, 0)
	metrics.InstrumentQuery(metrics.KdTree, "nearest", lo.Ternary(best >= 0, 1, 0))
	if best < 0 {
		return best, math.Inf(1)
	}
	return best, math.Sqrt(bestDist2)
}

// Size returns the number of points in the tree.
func (k *KdTree) Size() int {
	return len(k.nodes)
}

// Depth returns the depth of the deepest node, -1 for an empty tree.
func (k *KdTree) Depth() int {
	return k.depth
}

// IsStale reports whether the cloud changed since the tree was initialized from it, or was never
// part of it.
func (k *KdTree) IsStale(cloud *pointcloud.PointCloud) bool {
	s, ok := lo.Find(k.sources, func(s pointcloud.Snapshot) bool { return s.CloudID == cloud.ID() })
	return !ok || !s.Matches(cloud)
}
