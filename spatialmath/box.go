// Package spatialmath defines the value types consumed by the point cloud and its spatial
// indices: axis aligned boxes, rays, triangles, rigid transforms and space definitions.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// floatEpsilon is the tolerance used for geometric predicates that would otherwise be decided by
// rounding noise.
const floatEpsilon = 1e-9

// Box is an axis aligned bounding box given by its minimum and maximum corners. A Box whose Max is
// less than its Min on any axis is empty.
type Box struct {
	Min r3.Vector
	Max r3.Vector
}

// NewBox returns the box spanned by two arbitrary corners.
func NewBox(corner1, corner2 r3.Vector) Box {
	return Box{
		Min: r3.Vector{X: math.Min(corner1.X, corner2.X), Y: math.Min(corner1.Y, corner2.Y), Z: math.Min(corner1.Z, corner2.Z)},
		Max: r3.Vector{X: math.Max(corner1.X, corner2.X), Y: math.Max(corner1.Y, corner2.Y), Z: math.Max(corner1.Z, corner2.Z)},
	}
}

// EmptyBox returns a box that contains nothing and grows to fit whatever is included into it.
func EmptyBox() Box {
	return Box{
		Min: r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
}

// CubeAround returns the cube with the given center and side length.
func CubeAround(center r3.Vector, side float64) Box {
	half := r3.Vector{X: side / 2, Y: side / 2, Z: side / 2}
	return Box{Min: center.Sub(half), Max: center.Add(half)}
}

// IsEmpty returns true if the box contains no point.
func (b Box) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// Size returns the extent of the box along each axis.
func (b Box) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Center returns the center point of the box.
func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Diagonal returns the length of the box diagonal.
func (b Box) Diagonal() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Max.Sub(b.Min).Norm()
}

// ContainsPoint returns true if the point lies inside the box or on its boundary.
func (b Box) ContainsPoint(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// ContainsBox returns true if other lies completely inside b.
func (b Box) ContainsBox(other Box) bool {
	return b.ContainsPoint(other.Min) && b.ContainsPoint(other.Max)
}

// Overlaps returns true if the two boxes share at least one point. Touching faces count.
func (b Box) Overlaps(other Box) bool {
	return b.Max.X >= other.Min.X && b.Min.X <= other.Max.X &&
		b.Max.Y >= other.Min.Y && b.Min.Y <= other.Max.Y &&
		b.Max.Z >= other.Min.Z && b.Min.Z <= other.Max.Z
}

// Intersection returns the box shared by b and other. It is empty when they do not overlap.
func (b Box) Intersection(other Box) Box {
	return Box{
		Min: r3.Vector{X: math.Max(b.Min.X, other.Min.X), Y: math.Max(b.Min.Y, other.Min.Y), Z: math.Max(b.Min.Z, other.Min.Z)},
		Max: r3.Vector{X: math.Min(b.Max.X, other.Max.X), Y: math.Min(b.Max.Y, other.Max.Y), Z: math.Min(b.Max.Z, other.Max.Z)},
	}
}

// Include returns the smallest box containing both b and the point.
func (b Box) Include(p r3.Vector) Box {
	return Box{
		Min: r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)},
		Max: r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)},
	}
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(other Box) Box {
	if other.IsEmpty() {
		return b
	}
	return b.Include(other.Min).Include(other.Max)
}

// Inflate grows the box by d in every direction.
func (b Box) Inflate(d float64) Box {
	delta := r3.Vector{X: d, Y: d, Z: d}
	return Box{Min: b.Min.Sub(delta), Max: b.Max.Add(delta)}
}

// DistanceSquaredToPoint returns the squared distance from the point to the closest point of the
// box, zero when the point is inside.
func (b Box) DistanceSquaredToPoint(p r3.Vector) float64 {
	clamped := r3.Vector{
		X: math.Max(b.Min.X, math.Min(p.X, b.Max.X)),
		Y: math.Max(b.Min.Y, math.Min(p.Y, b.Max.Y)),
		Z: math.Max(b.Min.Z, math.Min(p.Z, b.Max.Z)),
	}
	return p.Sub(clamped).Norm2()
}

// OverlapsSphere returns true if the sphere with the given center and radius touches the box.
func (b Box) OverlapsSphere(center r3.Vector, radius float64) bool {
	return b.DistanceSquaredToPoint(center) <= radius*radius
}

// Split cuts the box in two by the plane perpendicular to axis through value.
func (b Box) Split(axis Axis, value float64) (Box, Box) {
	lower, upper := b, b
	lower.Max = axis.Set(lower.Max, value)
	upper.Min = axis.Set(upper.Min, value)
	return lower, upper
}

// Corners returns the eight corners of the box.
func (b Box) Corners() [8]r3.Vector {
	var corners [8]r3.Vector
	for i := range corners {
		c := b.Min
		if i&4 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&1 != 0 {
			c.Z = b.Max.Z
		}
		corners[i] = c
	}
	return corners
}

// String returns a human readable representation of the box.
func (b Box) String() string {
	return fmt.Sprintf("Box | Min: X:%.3f, Y:%.3f, Z:%.3f | Max: X:%.3f, Y:%.3f, Z:%.3f",
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
}

// Axis identifies one of the three coordinate axes.
type Axis uint8

// The coordinate axes in cycling order.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// AxisForDepth returns the axis used at the given depth of an axis cycling tree.
func AxisForDepth(depth int) Axis {
	return Axis(depth % 3)
}

// Next returns the axis following a in x, y, z order.
func (a Axis) Next() Axis {
	return (a + 1) % 3
}

// Of returns the component of v along the axis.
func (a Axis) Of(v r3.Vector) float64 {
	switch a {
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	default:
		return v.X
	}
}

// Set returns v with its component along the axis replaced by value.
func (a Axis) Set(v r3.Vector, value float64) r3.Vector {
	switch a {
	case AxisY:
		v.Y = value
	case AxisZ:
		v.Z = value
	default:
		v.X = value
	}
	return v
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", uint8(a))
}
