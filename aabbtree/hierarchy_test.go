package aabbtree

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.viam.com/test"

	"github.com/skeletex/cogs/logging"
	"github.com/skeletex/cogs/metrics"
	"github.com/skeletex/cogs/spatialmath"
)

func randomVector(r *rand.Rand, extent float64) r3.Vector {
	return r3.Vector{
		X: (r.Float64()*2 - 1) * extent,
		Y: (r.Float64()*2 - 1) * extent,
		Z: (r.Float64()*2 - 1) * extent,
	}
}

// makeGrid returns a w x h grid of unit squares in the z = 0 plane, two triangles per square.
func makeGrid(w, h int) []spatialmath.Triangle {
	var tris []spatialmath.Triangle
	for x := range w {
		for y := range h {
			p00 := r3.Vector{X: float64(x), Y: float64(y)}
			p10 := r3.Vector{X: float64(x + 1), Y: float64(y)}
			p01 := r3.Vector{X: float64(x), Y: float64(y + 1)}
			p11 := r3.Vector{X: float64(x + 1), Y: float64(y + 1)}
			tris = append(tris, spatialmath.NewTriangle(p00, p10, p11), spatialmath.NewTriangle(p00, p11, p01))
		}
	}
	return tris
}

// validateHierarchy checks that every triangle is stored in at least one leaf and that leaves
// only exceed the leaf size when no split could separate their triangles.
func validateHierarchy(t *testing.T, h *Hierarchy) {
	t.Helper()
	stored := make([]bool, h.Size())
	for i := range h.nodes {
		n := &h.nodes[i]
		if !n.isLeaf() {
			test.That(t, n.right, test.ShouldNotEqual, noChild)
			test.That(t, n.box.ContainsBox(h.nodes[n.left].box), test.ShouldBeTrue)
			test.That(t, n.box.ContainsBox(h.nodes[n.right].box), test.ShouldBeTrue)
			continue
		}
		for _, ti := range h.tris[n.first : n.first+n.count] {
			stored[ti] = true
		}
	}
	for i, ok := range stored {
		if !ok {
			t.Fatalf("triangle %d is not stored in any leaf", i)
		}
	}
}

func bruteHits(tris []spatialmath.Triangle, ray spatialmath.Ray) []int {
	var hit []int
	for i, tri := range tris {
		if _, _, ok := tri.IntersectRay(ray); ok {
			hit = append(hit, i)
		}
	}
	return hit
}

func TestHierarchyGrid(t *testing.T) {
	logger := logging.NewTestLogger(t)
	tris := makeGrid(8, 8)
	h := New(tris, spatialmath.EmptyBox(), logger)
	validateHierarchy(t, h)
	test.That(t, h.Size(), test.ShouldEqual, 128)
	test.That(t, h.NodeCount(), test.ShouldBeGreaterThan, 1)
	test.That(t, h.StoredCount(), test.ShouldBeGreaterThanOrEqualTo, h.Size())
	test.That(t, h.Bounds(), test.ShouldResemble, spatialmath.Box{Max: r3.Vector{X: 8, Y: 8}})

	t.Run("single hit through a square", func(t *testing.T) {
		ray := spatialmath.NewRay(r3.Vector{X: 2.25, Y: 3.75, Z: 5}, r3.Vector{Z: -1})
		points := h.Intersections(ray)
		test.That(t, len(points), test.ShouldEqual, 1)
		test.That(t, points[0].X, test.ShouldAlmostEqual, 2.25)
		test.That(t, points[0].Y, test.ShouldAlmostEqual, 3.75)
		test.That(t, points[0].Z, test.ShouldAlmostEqual, 0.)

		hit, ok := h.FirstIntersection(ray)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, hit.Distance, test.ShouldAlmostEqual, 5.)
		test.That(t, hit.Triangle, test.ShouldEqual, 2*(2*8+3)+1)
	})

	t.Run("hit on a shared edge reports each triangle once", func(t *testing.T) {
		ray := spatialmath.NewRay(r3.Vector{X: 4, Y: 4, Z: 1}, r3.Vector{Z: -1})
		hits := h.Hits(ray)
		test.That(t, hits, test.ShouldNotBeEmpty)
		seen := map[int]bool{}
		for _, hit := range hits {
			test.That(t, seen[hit.Triangle], test.ShouldBeFalse)
			seen[hit.Triangle] = true
		}
		if diff := cmp.Diff(bruteHits(tris, ray), hitTriangles(hits), cmpopts.SortSlices(func(a, b int) bool { return a < b })); diff != "" {
			t.Fatalf("edge hits mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("misses", func(t *testing.T) {
		test.That(t, h.Intersections(spatialmath.NewRay(r3.Vector{X: 2, Y: 2, Z: 5}, r3.Vector{Z: 1})), test.ShouldBeEmpty)
		test.That(t, h.Intersections(spatialmath.NewRay(r3.Vector{X: 20, Y: 2, Z: 5}, r3.Vector{Z: -1})), test.ShouldBeEmpty)
		_, ok := h.FirstIntersection(spatialmath.Ray{})
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func hitTriangles(hits []Hit) []int {
	out := make([]int, 0, len(hits))
	for _, hit := range hits {
		out = append(out, hit.Triangle)
	}
	return out
}

func TestHierarchyLayers(t *testing.T) {
	var tris []spatialmath.Triangle
	for z := range 5 {
		for _, tri := range makeGrid(4, 4) {
			p := tri.Points()
			lift := r3.Vector{Z: float64(z)}
			tris = append(tris, spatialmath.NewTriangle(p[0].Add(lift), p[1].Add(lift), p[2].Add(lift)))
		}
	}
	h := New(tris, spatialmath.EmptyBox(), logging.NewTestLogger(t))
	validateHierarchy(t, h)

	hits := h.Hits(spatialmath.NewRay(r3.Vector{X: 1.3, Y: 2.6, Z: 10}, r3.Vector{Z: -1}))
	test.That(t, len(hits), test.ShouldEqual, 5)
	for i, hit := range hits {
		test.That(t, hit.Point.Z, test.ShouldAlmostEqual, float64(4-i))
		if i > 0 {
			test.That(t, hit.Distance, test.ShouldBeGreaterThan, hits[i-1].Distance)
		}
	}

	hits = h.Hits(spatialmath.NewRay(r3.Vector{X: 1.3, Y: 2.6, Z: 2.5}, r3.Vector{Z: -1}))
	test.That(t, len(hits), test.ShouldEqual, 3)
	test.That(t, hits[0].Point.Z, test.ShouldAlmostEqual, 2.)
}

func TestHierarchyAgainstBruteForce(t *testing.T) {
	//nolint:gosec
	r := rand.New(rand.NewSource(9))
	tris := make([]spatialmath.Triangle, 400)
	for i := range tris {
		c := randomVector(r, 10)
		tris[i] = spatialmath.NewTriangle(c.Add(randomVector(r, 1)), c.Add(randomVector(r, 1)), c.Add(randomVector(r, 1)))
	}
	h := New(tris, spatialmath.EmptyBox(), logging.NewTestLogger(t))
	validateHierarchy(t, h)

	for range 200 {
		ray := spatialmath.NewRay(randomVector(r, 12), randomVector(r, 1))
		want := bruteHits(tris, ray)
		got := hitTriangles(h.Hits(ray))
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty(), cmpopts.SortSlices(func(a, b int) bool { return a < b })); diff != "" {
			t.Fatalf("ray %v mismatch (-want +got):\n%s", ray, diff)
		}
	}
}

func TestHierarchyDegenerate(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("empty", func(t *testing.T) {
		h := New(nil, spatialmath.EmptyBox(), logger)
		test.That(t, h.NodeCount(), test.ShouldEqual, 0)
		test.That(t, h.Bounds().IsEmpty(), test.ShouldBeTrue)
		test.That(t, h.Intersections(spatialmath.NewRay(r3.Vector{}, r3.Vector{X: 1})), test.ShouldBeEmpty)
	})

	t.Run("inseparable triangles become one leaf", func(t *testing.T) {
		tri := spatialmath.NewTriangle(r3.Vector{}, r3.Vector{X: 1}, r3.Vector{Y: 1})
		tris := make([]spatialmath.Triangle, 50)
		for i := range tris {
			tris[i] = tri
		}
		h := New(tris, spatialmath.EmptyBox(), logger)
		validateHierarchy(t, h)
		test.That(t, h.NodeCount(), test.ShouldEqual, 1)
		test.That(t, h.StoredCount(), test.ShouldEqual, 50)

		hits := h.Hits(spatialmath.NewRay(r3.Vector{X: 0.2, Y: 0.2, Z: 1}, r3.Vector{Z: -1}))
		test.That(t, len(hits), test.ShouldEqual, 50)
		test.That(t, hits[0].Triangle, test.ShouldEqual, 0)
		test.That(t, hits[49].Triangle, test.ShouldEqual, 49)
	})

	t.Run("micro scale triangles", func(t *testing.T) {
		for _, side := range []float64{1, 1e-3, 1e-5, 1e-7} {
			tri := spatialmath.NewTriangle(r3.Vector{}, r3.Vector{X: side}, r3.Vector{Y: side})
			h := New([]spatialmath.Triangle{tri}, spatialmath.EmptyBox(), logger)
			hits := h.Hits(spatialmath.NewRay(r3.Vector{X: side / 4, Y: side / 4, Z: 1}, r3.Vector{Z: -1}))
			test.That(t, len(hits), test.ShouldEqual, 1)
			test.That(t, hits[0].Distance, test.ShouldAlmostEqual, 1.)
		}
	})

	t.Run("depth limit", func(t *testing.T) {
		h := New(makeGrid(8, 8), spatialmath.EmptyBox(), logger, WithMaxDepth(0))
		test.That(t, h.NodeCount(), test.ShouldEqual, 1)
		test.That(t, h.StoredCount(), test.ShouldEqual, 128)
	})
}

func TestHierarchySnapshot(t *testing.T) {
	tris := makeGrid(4, 4)
	h := New(tris, spatialmath.EmptyBox(), logging.NewTestLogger(t))
	ray := spatialmath.NewRay(r3.Vector{X: 0.75, Y: 0.25, Z: 1}, r3.Vector{Z: -1})
	before := h.Hits(ray)
	test.That(t, len(before), test.ShouldEqual, 1)

	far := spatialmath.NewTriangle(r3.Vector{X: 100}, r3.Vector{X: 101}, r3.Vector{X: 100, Y: 1})
	for i := range tris {
		tris[i] = far
	}
	test.That(t, h.Hits(ray), test.ShouldResemble, before)
}

func TestHierarchyInstrumentation(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	h := New(makeGrid(4, 4), spatialmath.EmptyBox(), logger)
	test.That(t, logs.FilterMessage("built aabb tree").Len(), test.ShouldEqual, 1)
	test.That(t, metrics.NodeCount(metrics.AabbTree), test.ShouldEqual, float64(h.NodeCount()))

	before := metrics.QueryCount(metrics.AabbTree, "intersections")
	h.Intersections(spatialmath.NewRay(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{Z: -1}))
	test.That(t, metrics.QueryCount(metrics.AabbTree, "intersections")-before, test.ShouldEqual, 1.)
}
