// Package octree implements an octree index over point positions for radius, box and ray queries.
//
// The tree is a snapshot: it copies the positions it is built from and is not updated when the
// source clouds change. Callers rebuild it, and can use IsStale to find out when they have to.
package octree

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/skeletex/cogs/logging"
	"github.com/skeletex/cogs/metrics"
	"github.com/skeletex/cogs/pointcloud"
	"github.com/skeletex/cogs/spatialmath"
)

const (
	// DefaultPointsThreshold is the number of points at or below which a node is not subdivided.
	DefaultPointsThreshold = 64
	// DefaultMaxDepth bounds subdivision of coincident points. Three levels split a node into octants.
	DefaultMaxDepth = 48
	// DefaultAutoToleranceFactor scales the root diagonal into the ray picking tolerance.
	DefaultAutoToleranceFactor = 1e-3
)

// Config controls how the tree subdivides and picks.
type Config struct {
	PointsThreshold     int     `json:"points_threshold"`
	MaxDepth            int     `json:"max_depth"`
	AutoToleranceFactor float64 `json:"auto_tolerance_factor"`
}

// DefaultConfig returns the default tree configuration.
func DefaultConfig() Config {
	return Config{
		PointsThreshold:     DefaultPointsThreshold,
		MaxDepth:            DefaultMaxDepth,
		AutoToleranceFactor: DefaultAutoToleranceFactor,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.PointsThreshold < 1 {
		return errors.Errorf("%s: points_threshold must be at least 1, got %d", path, cfg.PointsThreshold)
	}
	if cfg.MaxDepth < 0 {
		return errors.Errorf("%s: max_depth must not be negative, got %d", path, cfg.MaxDepth)
	}
	if cfg.AutoToleranceFactor < 0 {
		return errors.Errorf("%s: auto_tolerance_factor must not be negative, got %f", path, cfg.AutoToleranceFactor)
	}
	return nil
}

// Option configures an Octree.
type Option func(*Octree)

// WithConfig sets the tree configuration.
func WithConfig(cfg Config) Option {
	return func(o *Octree) {
		o.cfg = cfg
	}
}

const noChild = -1

// node is either internal, with up to two children splitting its box in half, or a leaf owning
// perm[start:end]. Empty halves get no child.
type node struct {
	box      spatialmath.Box
	children [2]int32
	start    int32
	end      int32
	depth    int
}

func (n *node) isLeaf() bool {
	return n.children[0] == noChild && n.children[1] == noChild
}

// Octree is an arena backed binary space partition whose split plane cycles through x, y and z
// with depth, so every three levels form one octant split of a cubical root.
type Octree struct {
	logger logging.Logger
	cfg    Config

	positions []r3.Vector
	perm      []int
	nodes     []node
	sources   []pointcloud.Snapshot
}

// New returns an empty tree. Queries on it return no results until points are included. A nil
// logger falls back to the global one.
func New(logger logging.Logger, opts ...Option) *Octree {
	if logger == nil {
		logger = logging.Global()
	}
	o := &Octree{logger: logger.Sublogger("octree"), cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.PointsThreshold < 1 {
		o.cfg.PointsThreshold = 1
	}
	return o
}

// FromCloud builds a tree over the positions of the cloud.
func FromCloud(cloud *pointcloud.PointCloud, logger logging.Logger, opts ...Option) *Octree {
	o := New(logger, opts...)
	o.Include(cloud)
	return o
}

// FromPositions builds a tree over the given positions.
func FromPositions(positions []r3.Vector, logger logging.Logger, opts ...Option) *Octree {
	o := New(logger, opts...)
	o.IncludePositions(positions)
	return o
}

// Include adds the positions of the clouds to the indexed set and rebuilds the tree. Point indices
// continue after the points included earlier, in argument order.
func (o *Octree) Include(clouds ...*pointcloud.PointCloud) {
	for _, c := range clouds {
		o.positions = append(o.positions, c.Positions()...)
		o.sources = append(o.sources, c.Snapshot())
	}
	o.build()
}

// IncludePositions adds the positions to the indexed set and rebuilds the tree.
func (o *Octree) IncludePositions(positions []r3.Vector) {
	o.positions = append(o.positions, positions...)
	o.build()
}

// Clear removes all points and nodes.
func (o *Octree) Clear() {
	o.positions, o.perm, o.nodes, o.sources = nil, nil, nil, nil
}

// cubicalBounds returns the cube spanned by the smallest and largest coordinate on any axis of
// the indexed points.
func (o *Octree) cubicalBounds() spatialmath.Box {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range o.perm {
		p := o.positions[i]
		lo = min(lo, p.X, p.Y, p.Z)
		hi = max(hi, p.X, p.Y, p.Z)
	}
	return spatialmath.Box{Min: r3.Vector{X: lo, Y: lo, Z: lo}, Max: r3.Vector{X: hi, Y: hi, Z: hi}}
}

func isFinite(p r3.Vector) bool {
	for _, c := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (o *Octree) build() {
	start := time.Now()
	o.nodes = o.nodes[:0]
	if len(o.positions) == 0 {
		o.perm = nil
		return
	}
	// points with a NaN or infinite coordinate are kept but never indexed
	o.perm = make([]int, 0, len(o.positions))
	for i, p := range o.positions {
		if isFinite(p) {
			o.perm = append(o.perm, i)
		}
	}
	if len(o.perm) > 0 {
		o.subdivide(o.cubicalBounds(), 0, len(o.perm), 0)
	}

	metrics.InstrumentBuild(metrics.Octree, start, len(o.nodes), len(o.positions))
	o.logger.Debugw("built octree", "points", len(o.positions), "nodes", len(o.nodes),
		"depth", o.Depth(), "duration", time.Since(start))
}

// subdivide appends the node for perm[start:end] inside box and returns its arena index.
func (o *Octree) subdivide(box spatialmath.Box, start, end, depth int) int32 {
	idx := int32(len(o.nodes))
	o.nodes = append(o.nodes, node{
		box:      box,
		children: [2]int32{noChild, noChild},
		start:    int32(start),
		end:      int32(end),
		depth:    depth,
	})
	if end-start <= o.cfg.PointsThreshold || depth >= o.cfg.MaxDepth {
		return idx
	}

	axis := spatialmath.AxisForDepth(depth)
	split := axis.Of(box.Center())
	mid := start
	for i := start; i < end; i++ {
		if axis.Of(o.positions[o.perm[i]]) < split {
			o.perm[i], o.perm[mid] = o.perm[mid], o.perm[i]
			mid++
		}
	}
	lower, upper := box.Split(axis, split)
	if mid > start {
		child := o.subdivide(lower, start, mid, depth+1)
		o.nodes[idx].children[0] = child
	}
	if end > mid {
		child := o.subdivide(upper, mid, end, depth+1)
		o.nodes[idx].children[1] = child
	}
	return idx
}

// walk visits nodes depth first starting at the root. Children of a node are only visited if
// visit returns true for it. Leaves are passed their point indices.
func (o *Octree) walk(visit func(n *node) bool, leaf func(indices []int) bool) {
	if len(o.nodes) == 0 {
		return
	}
	stack := []int32{0}
	for len(stack) > 0 {
		n := &o.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if !visit(n) {
			continue
		}
		if n.isLeaf() {
			if !leaf(o.perm[n.start:n.end]) {
				return
			}
			continue
		}
		for _, c := range n.children {
			if c != noChild {
				stack = append(stack, c)
			}
		}
	}
}

// HasPointIn reports whether any point lies within radius of center. It stops at the first hit.
// A negative radius matches nothing.
func (o *Octree) HasPointIn(center r3.Vector, radius float64) bool {
	found := false
	if !(radius >= 0) {
		metrics.InstrumentQuery(metrics.Octree, "has_point_in_sphere", 0)
		return false
	}
	r2 := radius * radius
	o.walk(func(n *node) bool {
		return n.box.OverlapsSphere(center, radius)
	}, func(indices []int) bool {
		for _, i := range indices {
			if o.positions[i].Sub(center).Norm2() <= r2 {
				found = true
				return false
			}
		}
		return true
	})
	metrics.InstrumentQuery(metrics.Octree, "has_point_in_sphere", boolHits(found))
	return found
}

// HasPointInBox reports whether any point lies inside the box, boundary included.
func (o *Octree) HasPointInBox(box spatialmath.Box) bool {
	found := false
	o.walk(func(n *node) bool {
		return n.box.Overlaps(box)
	}, func(indices []int) bool {
		for _, i := range indices {
			if box.ContainsPoint(o.positions[i]) {
				found = true
				return false
			}
		}
		return true
	})
	metrics.InstrumentQuery(metrics.Octree, "has_point_in_box", boolHits(found))
	return found
}

// Find returns the sorted indices of all points within radius of center, none for a negative
// radius.
func (o *Octree) Find(center r3.Vector, radius float64) []int {
	var found []int
	if !(radius >= 0) {
		metrics.InstrumentQuery(metrics.Octree, "find_sphere", 0)
		return nil
	}
	r2 := radius * radius
	o.walk(func(n *node) bool {
		return n.box.OverlapsSphere(center, radius)
	}, func(indices []int) bool {
		for _, i := range indices {
			if o.positions[i].Sub(center).Norm2() <= r2 {
				found = append(found, i)
			}
		}
		return true
	})
	slices.Sort(found)
	metrics.InstrumentQuery(metrics.Octree, "find_sphere", len(found))
	return found
}

// FindInBox returns the sorted indices of all points inside the box, boundary included.
func (o *Octree) FindInBox(box spatialmath.Box) []int {
	var found []int
	o.walk(func(n *node) bool {
		return n.box.Overlaps(box)
	}, func(indices []int) bool {
		for _, i := range indices {
			if box.ContainsPoint(o.positions[i]) {
				found = append(found, i)
			}
		}
		return true
	})
	slices.Sort(found)
	metrics.InstrumentQuery(metrics.Octree, "find_box", len(found))
	return found
}

// AutoTolerance returns the picking tolerance used when none is given: the root diagonal scaled by
// the configured factor.
func (o *Octree) AutoTolerance() float64 {
	if len(o.nodes) == 0 {
		return 0
	}
	return o.nodes[0].box.Diagonal() * o.cfg.AutoToleranceFactor
}

// IntersectedPoint returns the index of the point hit by the ray using the automatic tolerance,
// or -1. See IntersectedPointWithTolerance.
func (o *Octree) IntersectedPoint(ray spatialmath.Ray) int {
	return o.IntersectedPointWithTolerance(ray, o.AutoTolerance())
}

// IntersectedPointWithTolerance returns the index of the point hit by the ray, or -1. A point is
// hit when it is not behind the origin and its distance to the ray is at most tolerance. Of all
// hit points the one closest to the ray origin wins, ties going to the lower index.
func (o *Octree) IntersectedPointWithTolerance(ray spatialmath.Ray, tolerance float64) int {
	best, bestDist2 := -1, math.Inf(1)
	if ray.IsDegenerate() || tolerance < 0 {
		metrics.InstrumentQuery(metrics.Octree, "pick", 0)
		return best
	}
	o.walk(func(n *node) bool {
		if n.box.DistanceSquaredToPoint(ray.Origin) > bestDist2 {
			return false
		}
		return ray.IntersectsBox(n.box.Inflate(tolerance))
	}, func(indices []int) bool {
		for _, i := range indices {
			p := o.positions[i]
			t, d := ray.Project(p)
			if t < 0 || d > tolerance {
				continue
			}
			dist2 := p.Sub(ray.Origin).Norm2()
			if dist2 < bestDist2 || (dist2 == bestDist2 && i < best) {
				best, bestDist2 = i, dist2
			}
		}
		return true
	})
	metrics.InstrumentQuery(metrics.Octree, "pick", boolHits(best >= 0))
	return best
}

func boolHits(hit bool) int {
	if hit {
		return 1
	}
	return 0
}

// Size returns the number of indexed points.
func (o *Octree) Size() int {
	return len(o.positions)
}

// Positions returns the indexed positions. The slice must not be modified.
func (o *Octree) Positions() []r3.Vector {
	return o.positions
}

// NodeCount returns the number of nodes, zero for an empty tree.
func (o *Octree) NodeCount() int {
	return len(o.nodes)
}

// Depth returns the depth of the deepest node, -1 for an empty tree.
func (o *Octree) Depth() int {
	depth := -1
	for i := range o.nodes {
		depth = max(depth, o.nodes[i].depth)
	}
	return depth
}

// Bounds returns the root cube, empty for an empty tree.
func (o *Octree) Bounds() spatialmath.Box {
	if len(o.nodes) == 0 {
		return spatialmath.EmptyBox()
	}
	return o.nodes[0].box
}

// NodeCubes returns the box of every node in depth first order.
func (o *Octree) NodeCubes() []spatialmath.Box {
	boxes := make([]spatialmath.Box, 0, len(o.nodes))
	for i := range o.nodes {
		boxes = append(boxes, o.nodes[i].box)
	}
	return boxes
}

// LeafCount returns the number of leaves.
func (o *Octree) LeafCount() int {
	leaves := 0
	for i := range o.nodes {
		if o.nodes[i].isLeaf() {
			leaves++
		}
	}
	return leaves
}

// Sources returns the snapshots of the clouds the tree was built from.
func (o *Octree) Sources() []pointcloud.Snapshot {
	return o.sources
}

// IsStale reports whether the cloud changed since it was included, or was never included.
func (o *Octree) IsStale(cloud *pointcloud.PointCloud) bool {
	for _, s := range o.sources {
		if s.CloudID == cloud.ID() {
			return !s.Matches(cloud)
		}
	}
	return true
}

// String returns an indented dump of the tree for debugging.
func (o *Octree) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Octree | Points: %d | Nodes: %d\n", len(o.positions), len(o.nodes))
	if len(o.nodes) == 0 {
		return sb.String()
	}
	var dump func(idx int32)
	dump = func(idx int32) {
		n := &o.nodes[idx]
		indent := strings.Repeat("  ", n.depth)
		if n.isLeaf() {
			fmt.Fprintf(&sb, "%sleaf %d points %v\n", indent, n.end-n.start, n.box)
			return
		}
		fmt.Fprintf(&sb, "%snode split %v %v\n", indent, spatialmath.AxisForDepth(n.depth), n.box)
		for _, c := range n.children {
			if c != noChild {
				dump(c)
			}
		}
	}
	dump(0)
	return sb.String()
}
