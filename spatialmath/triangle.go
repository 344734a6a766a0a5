package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Triangle is a triangle in 3D space with its counter-clockwise normal precomputed.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle creates a triangle from three points.
func NewTriangle(p0, p1, p2 r3.Vector) Triangle {
	return Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// PlaneNormal returns the unit normal of the plane through the three points, or the zero vector
// when they are collinear.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if norm := n.Norm(); norm > 0 {
		return n.Mul(1 / norm)
	}
	return r3.Vector{}
}

// Points returns the vertices of the triangle.
func (t Triangle) Points() [3]r3.Vector {
	return [3]r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the unit normal of the triangle.
func (t Triangle) Normal() r3.Vector {
	return t.normal
}

// Centroid returns the average of the three vertices.
func (t Triangle) Centroid() r3.Vector {
	return t.p0.Add(t.p1).Add(t.p2).Mul(1. / 3.)
}

// BoundingBox returns the smallest axis aligned box containing the triangle.
func (t Triangle) BoundingBox() Box {
	return NewBox(t.p0, t.p0).Include(t.p1).Include(t.p2)
}

// IsDegenerate returns true if the triangle has no area.
func (t Triangle) IsDegenerate() bool {
	return t.normal == (r3.Vector{})
}

// IntersectsPlane determines if the triangle intersects with a plane defined by a point and normal vector.
// Returns true if the triangle intersects with or lies on the plane.
func (t Triangle) IntersectsPlane(planePt, planeNormal r3.Vector) bool {
	// signed distances from each vertex to the plane
	d0 := planeNormal.Dot(t.p0.Sub(planePt))
	d1 := planeNormal.Dot(t.p1.Sub(planePt))
	d2 := planeNormal.Dot(t.p2.Sub(planePt))

	// all points on the same side means no intersection
	if (d0 > floatEpsilon && d1 > floatEpsilon && d2 > floatEpsilon) ||
		(d0 < -floatEpsilon && d1 < -floatEpsilon && d2 < -floatEpsilon) {
		return false
	}
	return true
}

// IntersectRay returns the ray parameter and the point where the ray enters the triangle, using
// the Moller-Trumbore algorithm. Hits behind the ray origin are ignored. Both faces are hit.
func (t Triangle) IntersectRay(ray Ray) (float64, r3.Vector, bool) {
	e1 := t.p1.Sub(t.p0)
	e2 := t.p2.Sub(t.p0)
	h := ray.Direction.Cross(e2)
	det := e1.Dot(h)
	// det scales with both edges and the direction, so the threshold does too
	if math.Abs(det) <= floatEpsilon*e1.Norm()*e2.Norm()*ray.Direction.Norm() {
		// ray parallel to the triangle plane
		return 0, r3.Vector{}, false
	}
	inv := 1 / det
	s := ray.Origin.Sub(t.p0)
	u := inv * s.Dot(h)
	if u < -floatEpsilon || u > 1+floatEpsilon {
		return 0, r3.Vector{}, false
	}
	q := s.Cross(e1)
	v := inv * ray.Direction.Dot(q)
	if v < -floatEpsilon || u+v > 1+floatEpsilon {
		return 0, r3.Vector{}, false
	}
	dist := inv * e2.Dot(q)
	if dist < 0 {
		return 0, r3.Vector{}, false
	}
	return dist, ray.PointAt(dist), true
}
