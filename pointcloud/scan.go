package pointcloud

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/skeletex/cogs/spatialmath"
)

// InvalidIndex marks grid cells that hold no point.
const InvalidIndex = -1

// GridCoord is a cell of a scan grid.
type GridCoord struct {
	X int
	Y int
}

// OutOfBoundsError is returned when a grid coordinate lies outside the scan resolution.
type OutOfBoundsError struct {
	Coord  GridCoord
	Width  int
	Height int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("grid coordinate (%d, %d) out of bounds for resolution %dx%d",
		e.Coord.X, e.Coord.Y, e.Width, e.Height)
}

// Scan is a point cloud whose points are additionally organized over a 2D grid. Points can only be
// added through the grid so every point has a valid grid coordinate. Resize and Append are
// rejected.
type Scan struct {
	*PointCloud

	width  int
	height int
	grid   []int
	coords []GridCoord

	cameraPosition r3.Vector
}

// NewScan returns an empty scan with the given resolution.
func NewScan(width, height int) *Scan {
	s := &Scan{PointCloud: New()}
	s.PointCloud.observer = s
	s.setGrid(max(width, 0), max(height, 0))
	return s
}

func (s *Scan) setGrid(width, height int) {
	s.width, s.height = width, height
	s.grid = make([]int, width*height)
	for i := range s.grid {
		s.grid[i] = InvalidIndex
	}
	for idx, c := range s.coords {
		s.grid[c.Y*s.width+c.X] = idx
	}
}

func (s *Scan) allowResize() bool { return false }

func (s *Scan) compacted(cmds []CopyCommand, erased []int, newSize int) {
	for _, idx := range erased {
		c := s.coords[idx]
		s.grid[c.Y*s.width+c.X] = InvalidIndex
	}
	for _, cmd := range cmds {
		for k := 0; k < cmd.Length; k++ {
			c := s.coords[cmd.Source+k]
			s.coords[cmd.Target+k] = c
			s.grid[c.Y*s.width+c.X] = cmd.Target + k
		}
	}
	s.coords = s.coords[:newSize]
}

func (s *Scan) cleared() {
	s.coords = s.coords[:0]
	for i := range s.grid {
		s.grid[i] = InvalidIndex
	}
}

// Resize is not supported by a scan and always returns false. Use AddPointAt instead.
func (s *Scan) Resize(int) bool {
	return false
}

// Append is not supported by a scan and always returns false.
func (s *Scan) Append(*PointCloud) bool {
	return false
}

// Resolution returns the grid width and height.
func (s *Scan) Resolution() (int, int) {
	return s.width, s.height
}

// Width returns the grid width.
func (s *Scan) Width() int { return s.width }

// Height returns the grid height.
func (s *Scan) Height() int { return s.height }

// SetResolution changes the grid resolution. Points outside the new grid are erased and new cells
// are empty.
func (s *Scan) SetResolution(width, height int) {
	width, height = max(width, 0), max(height, 0)
	var outside []int
	for idx, c := range s.coords {
		if c.X >= width || c.Y >= height {
			outside = append(outside, idx)
		}
	}
	s.PointCloud.Erase(outside)
	s.setGrid(width, height)
}

// Coords returns the grid coordinate of every point.
func (s *Scan) Coords() []GridCoord {
	return s.coords
}

func (s *Scan) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.width && y < s.height
}

func (s *Scan) outOfBounds(x, y int) error {
	return &OutOfBoundsError{Coord: GridCoord{X: x, Y: y}, Width: s.width, Height: s.height}
}

// IsPointAt reports whether the coordinate is valid and occupied by a point.
func (s *Scan) IsPointAt(x, y int) bool {
	return s.inBounds(x, y) && s.grid[y*s.width+x] != InvalidIndex
}

// PointAt returns the index of the point at the coordinate, InvalidIndex if the cell is empty.
func (s *Scan) PointAt(x, y int) (int, error) {
	if !s.inBounds(x, y) {
		return InvalidIndex, s.outOfBounds(x, y)
	}
	return s.grid[y*s.width+x], nil
}

// AddPointAt adds a point at the coordinate and returns its index. If the cell is occupied the
// existing index is returned.
func (s *Scan) AddPointAt(x, y int) (int, error) {
	if !s.inBounds(x, y) {
		return InvalidIndex, s.outOfBounds(x, y)
	}
	if idx := s.grid[y*s.width+x]; idx != InvalidIndex {
		return idx, nil
	}
	idx := s.Size()
	s.PointCloud.resize(idx + 1)
	s.coords = append(s.coords, GridCoord{X: x, Y: y})
	s.grid[y*s.width+x] = idx
	return idx, nil
}

// AddPointsAt adds a point at every coordinate and returns the index of the first new point.
// Nothing is added if any coordinate is out of bounds.
func (s *Scan) AddPointsAt(coords []GridCoord) (int, error) {
	for _, c := range coords {
		if !s.inBounds(c.X, c.Y) {
			return InvalidIndex, s.outOfBounds(c.X, c.Y)
		}
	}
	first := s.Size()
	s.PointCloud.Reserve(first + len(coords))
	for _, c := range coords {
		if _, err := s.AddPointAt(c.X, c.Y); err != nil {
			return InvalidIndex, err
		}
	}
	return first, nil
}

// CameraPosition returns the position the scan was taken from.
func (s *Scan) CameraPosition() r3.Vector {
	return s.cameraPosition
}

// SetCameraPosition sets the position the scan was taken from.
func (s *Scan) SetCameraPosition(p r3.Vector) {
	s.cameraPosition = p
}

// Transform transforms points, normals and the camera position.
func (s *Scan) Transform(m mgl64.Mat4, newSpace *spatialmath.SpaceDefinition) {
	s.PointCloud.Transform(m, newSpace)
	s.cameraPosition = spatialmath.TransformPoint(m, s.cameraPosition)
}

// TransformToSpace converts points and camera position to the target space. It returns false if the
// scan has no space.
func (s *Scan) TransformToSpace(target spatialmath.SpaceDefinition) bool {
	current, ok := s.Space()
	if !ok {
		return false
	}
	s.Transform(current.TransformTo(target), &target)
	return true
}

// IndexMap returns the point index of every grid cell, indexed as [y][x].
func (s *Scan) IndexMap() [][]int {
	m := make([][]int, s.height)
	for y := range m {
		m[y] = append([]int(nil), s.grid[y*s.width:(y+1)*s.width]...)
	}
	return m
}

// DepthMap returns the distance of every grid point from the camera position, indexed as [y][x].
// Empty cells hold NaN.
func (s *Scan) DepthMap() [][]float64 {
	return s.DepthMapFrom(s.cameraPosition)
}

// DepthMapFrom is DepthMap measured from a custom position.
func (s *Scan) DepthMapFrom(camera r3.Vector) [][]float64 {
	positions := s.Positions()
	m := make([][]float64, s.height)
	for y := range m {
		m[y] = make([]float64, s.width)
		for x := range m[y] {
			idx := s.grid[y*s.width+x]
			if idx == InvalidIndex {
				m[y][x] = math.NaN()
				continue
			}
			m[y][x] = positions[idx].Sub(camera).Norm()
		}
	}
	return m
}

// Clone returns a deep copy of the scan.
func (s *Scan) Clone() *Scan {
	c := &Scan{
		PointCloud:     s.PointCloud.Clone(),
		coords:         append([]GridCoord(nil), s.coords...),
		cameraPosition: s.cameraPosition,
	}
	c.PointCloud.observer = c
	c.setGrid(s.width, s.height)
	return c
}
