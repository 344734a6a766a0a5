package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Ray is a half line starting at Origin and extending along Direction.
type Ray struct {
	Origin    r3.Vector
	Direction r3.Vector
}

// NewRay returns a ray with a unit length direction. A zero direction is kept as is and such a
// ray intersects nothing.
func NewRay(origin, direction r3.Vector) Ray {
	if n := direction.Norm(); n > 0 {
		direction = direction.Mul(1 / n)
	}
	return Ray{Origin: origin, Direction: direction}
}

// IsDegenerate returns true when the ray has no direction.
func (r Ray) IsDegenerate() bool {
	return r.Direction.Norm2() == 0
}

// PointAt returns the point at parameter t along the ray.
func (r Ray) PointAt(t float64) r3.Vector {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Project returns the ray parameter of the orthogonal projection of p onto the ray's line and the
// distance between p and that projection. The parameter is in units of Direction's length.
func (r Ray) Project(p r3.Vector) (t, distance float64) {
	dirNorm2 := r.Direction.Norm2()
	if dirNorm2 == 0 {
		return 0, p.Sub(r.Origin).Norm()
	}
	rel := p.Sub(r.Origin)
	t = rel.Dot(r.Direction) / dirNorm2
	return t, rel.Sub(r.Direction.Mul(t)).Norm()
}

// DistanceToPoint returns the distance between p and the closest point of the ray. Points behind
// the origin are measured against the origin itself.
func (r Ray) DistanceToPoint(p r3.Vector) float64 {
	t, d := r.Project(p)
	if t < 0 {
		return p.Sub(r.Origin).Norm()
	}
	return d
}

// IntersectBox clips the ray against the box using the slab method. It returns the entry and exit
// parameters and whether the ray touches the box at all. An origin inside the box gives tmin = 0.
func (r Ray) IntersectBox(b Box) (tmin, tmax float64, ok bool) {
	if b.IsEmpty() || r.IsDegenerate() {
		return 0, 0, false
	}
	tmin, tmax = 0, math.Inf(1)
	for axis := AxisX; axis <= AxisZ; axis++ {
		o := axis.Of(r.Origin)
		d := axis.Of(r.Direction)
		lo, hi := axis.Of(b.Min), axis.Of(b.Max)
		if math.Abs(d) < floatEpsilon {
			// parallel to the slab: inside or never
			if o < lo || o > hi {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / d
		t0, t1 := (lo-o)*inv, (hi-o)*inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}

// IntersectsBox reports whether the ray touches the box.
func (r Ray) IntersectsBox(b Box) bool {
	_, _, ok := r.IntersectBox(b)
	return ok
}

func (r Ray) String() string {
	return fmt.Sprintf("Ray | Origin: X:%.3f, Y:%.3f, Z:%.3f | Direction: X:%.3f, Y:%.3f, Z:%.3f",
		r.Origin.X, r.Origin.Y, r.Origin.Z, r.Direction.X, r.Direction.Y, r.Direction.Z)
}
