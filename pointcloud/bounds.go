package pointcloud

import (
	"github.com/golang/geo/r3"

	"github.com/skeletex/cogs/spatialmath"
)

// Bounds returns the axis aligned bounding box of the positions. It is empty for an empty cloud.
func Bounds(pc *PointCloud) spatialmath.Box {
	return BoundsOf(pc.Positions())
}

// BoundsOf returns the axis aligned bounding box of the given positions.
func BoundsOf(positions []r3.Vector) spatialmath.Box {
	box := spatialmath.EmptyBox()
	for _, p := range positions {
		box = box.Include(p)
	}
	return box
}

// ErasePointsOutsideBox erases every point whose position is outside the box. Points on the
// boundary are kept.
func ErasePointsOutsideBox(box spatialmath.Box, pc *PointCloud) bool {
	return pc.EraseIf(func(position, _ r3.Vector) bool {
		return !box.ContainsPoint(position)
	})
}
