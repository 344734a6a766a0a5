package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// TransformPoint applies the affine transformation m to the point p.
func TransformPoint(m mgl64.Mat4, p r3.Vector) r3.Vector {
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	if w := v.W(); w != 0 && w != 1 {
		return r3.Vector{X: v.X() / w, Y: v.Y() / w, Z: v.Z() / w}
	}
	return r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
}

// TransformDirection applies the linear part of m to n and renormalizes the result. A zero
// result is returned unchanged.
func TransformDirection(m mgl64.Mat4, n r3.Vector) r3.Vector {
	v := m.Mat3().Mul3x1(mgl64.Vec3{n.X, n.Y, n.Z})
	if v.Len() == 0 {
		return r3.Vector{}
	}
	v = v.Normalize()
	return r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
}

// TransformBox returns the axis aligned box enclosing the transformed corners of b.
func TransformBox(m mgl64.Mat4, b Box) Box {
	if b.IsEmpty() {
		return b
	}
	out := EmptyBox()
	for _, c := range b.Corners() {
		out = out.Include(TransformPoint(m, c))
	}
	return out
}

// TransformRay transforms the ray's origin as a point and its direction as a direction.
func TransformRay(m mgl64.Mat4, r Ray) Ray {
	return Ray{Origin: TransformPoint(m, r.Origin), Direction: TransformDirection(m, r.Direction)}
}
