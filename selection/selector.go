// Package selection selects points of a cloud by casting rays into it, as an interactive editor
// does when the user clicks or brushes over a cloud.
package selection

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/skeletex/cogs/logging"
	"github.com/skeletex/cogs/octree"
	"github.com/skeletex/cogs/pointcloud"
	"github.com/skeletex/cogs/spatialmath"
)

// Config controls ray selection.
type Config struct {
	// Radius also selects the points around a picked point up to this distance when positive.
	Radius float64 `json:"radius"`
	// Tolerance is the ray picking tolerance. Zero uses the octree's automatic tolerance.
	Tolerance float64 `json:"tolerance"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Radius < 0 {
		return errors.Errorf("%s: radius must not be negative, got %f", path, cfg.Radius)
	}
	if cfg.Tolerance < 0 {
		return errors.Errorf("%s: tolerance must not be negative, got %f", path, cfg.Tolerance)
	}
	return nil
}

// Selector keeps a set of selected point indices of one cloud and the octree used to pick them.
// The octree is rebuilt lazily whenever the cloud changed since it was built.
type Selector struct {
	logger    logging.Logger
	cfg       Config
	octreeCfg octree.Config

	cloud    *pointcloud.PointCloud
	tree     *octree.Octree
	selected map[int]struct{}
}

// Option configures a Selector.
type Option func(*Selector)

// WithConfig sets the selection configuration.
func WithConfig(cfg Config) Option {
	return func(s *Selector) {
		s.cfg = cfg
	}
}

// WithOctreeConfig sets the configuration of the picking octree.
func WithOctreeConfig(cfg octree.Config) Option {
	return func(s *Selector) {
		s.octreeCfg = cfg
	}
}

// New returns a selector over the cloud. A nil logger falls back to the global one.
func New(cloud *pointcloud.PointCloud, logger logging.Logger, opts ...Option) *Selector {
	if logger == nil {
		logger = logging.Global()
	}
	s := &Selector{
		logger:    logger.Sublogger("selection"),
		octreeCfg: octree.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Initialize(cloud)
	return s
}

// Initialize switches the selector to a new cloud, forgetting the old selection.
func (s *Selector) Initialize(cloud *pointcloud.PointCloud) {
	s.cloud = cloud
	s.tree = nil
	s.selected = map[int]struct{}{}
}

// Cloud returns the cloud points are selected from.
func (s *Selector) Cloud() *pointcloud.PointCloud {
	return s.cloud
}

func (s *Selector) index() *octree.Octree {
	if s.cloud == nil {
		return nil
	}
	if s.tree == nil || s.tree.IsStale(s.cloud) {
		if s.tree != nil {
			s.logger.Debugw("cloud changed, rebuilding selection octree", "points", s.cloud.Size())
		}
		s.tree = octree.FromCloud(s.cloud, s.logger, octree.WithConfig(s.octreeCfg))
	}
	return s.tree
}

func (s *Selector) pick(ray spatialmath.Ray) int {
	tree := s.index()
	if tree == nil {
		return -1
	}
	if s.cfg.Tolerance > 0 {
		return tree.IntersectedPointWithTolerance(ray, s.cfg.Tolerance)
	}
	return tree.IntersectedPoint(ray)
}

// CountSelected returns the number of selected points.
func (s *Selector) CountSelected() int {
	return len(s.selected)
}

// SelectPoint selects the point hit by the ray and, with a positive radius, the points around it.
// It returns the index of the hit point or -1.
func (s *Selector) SelectPoint(ray spatialmath.Ray) int {
	idx := s.pick(ray)
	if idx < 0 {
		return idx
	}
	s.SelectPointsAround(idx, s.cfg.Radius)
	return idx
}

// DeselectPoint deselects the point hit by the ray and, with a positive radius, the points
// around it. It returns the index of the hit point or -1.
func (s *Selector) DeselectPoint(ray spatialmath.Ray) int {
	idx := s.pick(ray)
	if idx < 0 {
		return idx
	}
	s.DeselectPointsAround(idx, s.cfg.Radius)
	return idx
}

func (s *Selector) valid(idx int) bool {
	return s.cloud != nil && idx >= 0 && idx < s.cloud.Size()
}

// SelectIndex selects the point with the given index. Indices outside the cloud are ignored.
func (s *Selector) SelectIndex(idx int) {
	if s.valid(idx) {
		s.selected[idx] = struct{}{}
	}
}

// DeselectIndex deselects the point with the given index.
func (s *Selector) DeselectIndex(idx int) {
	delete(s.selected, idx)
}

// around returns idx and the points within radius of it.
func (s *Selector) around(idx int, radius float64) []int {
	if !s.valid(idx) {
		return nil
	}
	if radius <= 0 {
		return []int{idx}
	}
	return s.index().Find(s.cloud.Positions()[idx], radius)
}

// SelectPointsAround selects the point and every point within radius of it.
func (s *Selector) SelectPointsAround(idx int, radius float64) {
	for _, i := range s.around(idx, radius) {
		s.selected[i] = struct{}{}
	}
}

// DeselectPointsAround deselects the point and every point within radius of it.
func (s *Selector) DeselectPointsAround(idx int, radius float64) {
	for _, i := range s.around(idx, radius) {
		delete(s.selected, i)
	}
}

// DeselectAll clears the selection.
func (s *Selector) DeselectAll() {
	clear(s.selected)
}

// IsSelected reports whether the point is selected.
func (s *Selector) IsSelected(idx int) bool {
	_, ok := s.selected[idx]
	return ok
}

// Selected returns the selected indices in increasing order.
func (s *Selector) Selected() []int {
	indices := lo.Keys(s.selected)
	slices.Sort(indices)
	return indices
}

// EraseSelected removes the selected points from the cloud and clears the selection. It returns
// false if the cloud refused the erase, leaving the selection untouched.
func (s *Selector) EraseSelected() bool {
	if s.cloud == nil || len(s.selected) == 0 {
		return false
	}
	if !s.cloud.Erase(s.Selected()) {
		return false
	}
	s.logger.Debugw("erased selected points", "count", len(s.selected), "remaining", s.cloud.Size())
	clear(s.selected)
	return true
}

// Remap updates the selection after the cloud was compacted outside the selector, using the
// replacement map returned by the erase. Selected points that were erased are dropped.
func (s *Selector) Remap(replacement []int) {
	remapped := make(map[int]struct{}, len(s.selected))
	for idx := range s.selected {
		if idx < len(replacement) && replacement[idx] >= 0 {
			remapped[replacement[idx]] = struct{}{}
		}
	}
	s.selected = remapped
}
