package pointcloud

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"go.viam.com/test"

	"github.com/skeletex/cogs/spatialmath"
)

// checkSizeInvariant asserts that every property holds Size elements and Capacity >= Size.
func checkSizeInvariant(t *testing.T, pc *PointCloud) {
	t.Helper()
	test.That(t, pc.Capacity(), test.ShouldBeGreaterThanOrEqualTo, pc.Size())
	for _, p := range pc.Properties() {
		test.That(t, p.Len(), test.ShouldEqual, pc.Size())
	}
}

func TestPointCloudBasic(t *testing.T) {
	pc := New()
	test.That(t, pc.Size(), test.ShouldEqual, 0)
	test.That(t, pc.HasProperty(Positions), test.ShouldBeTrue)
	test.That(t, len(pc.Properties()), test.ShouldEqual, 1)
	test.That(t, pc.Normals(), test.ShouldBeNil)

	test.That(t, pc.Resize(5), test.ShouldBeTrue)
	test.That(t, pc.Size(), test.ShouldEqual, 5)
	test.That(t, len(pc.Positions()), test.ShouldEqual, 5)
	checkSizeInvariant(t, pc)

	pc.Reserve(100)
	test.That(t, pc.Capacity(), test.ShouldEqual, 100)
	test.That(t, pc.Size(), test.ShouldEqual, 5)
	checkSizeInvariant(t, pc)

	pc.ShrinkToFit()
	test.That(t, pc.Capacity(), test.ShouldEqual, 5)
	checkSizeInvariant(t, pc)

	test.That(t, pc.Resize(-1), test.ShouldBeFalse)

	pc.Clear()
	test.That(t, pc.Size(), test.ShouldEqual, 0)
	test.That(t, pc.Capacity(), test.ShouldEqual, 5)
	checkSizeInvariant(t, pc)
}

func TestPointCloudGrowth(t *testing.T) {
	pc := New()
	pc.AddNormals()
	for i := 1; i <= 100; i++ {
		test.That(t, pc.Resize(i), test.ShouldBeTrue)
		checkSizeInvariant(t, pc)
	}
	// geometric growth never allocates exactly one point at a time
	test.That(t, pc.Capacity(), test.ShouldBeGreaterThanOrEqualTo, 100)
	test.That(t, pc.Capacity(), test.ShouldBeLessThanOrEqualTo, 200)

	pc.Positions()[99] = r3.Vector{X: 9}
	test.That(t, pc.Resize(50), test.ShouldBeTrue)
	test.That(t, pc.Resize(100), test.ShouldBeTrue)
	checkSizeInvariant(t, pc)
}

func TestProperties(t *testing.T) {
	pc := MakeTestPointCloud()

	t.Run("add is idempotent", func(t *testing.T) {
		p1, err := pc.AddProperty("WEIGHT", Float)
		test.That(t, err, test.ShouldBeNil)
		p2, err := pc.AddProperty("WEIGHT", FVec3)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p2, test.ShouldEqual, p1)
		test.That(t, p2.Type(), test.ShouldEqual, Float)
		test.That(t, p2.BytesPerPoint(), test.ShouldEqual, 4)
		test.That(t, p2.Len(), test.ShouldEqual, pc.Size())
		checkSizeInvariant(t, pc)
	})

	t.Run("invalid properties", func(t *testing.T) {
		_, err := pc.AddProperty("NOPE", Unknown)
		test.That(t, err, test.ShouldNotBeNil)
		_, err = pc.AddRawProperty("NOPE", 0)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, pc.HasProperty("NOPE"), test.ShouldBeFalse)
	})

	t.Run("raw property", func(t *testing.T) {
		p, err := pc.AddRawProperty("LABEL", 3)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p.Type(), test.ShouldEqual, Unknown)
		raw := Data[byte](pc, "LABEL")
		test.That(t, len(raw), test.ShouldEqual, 3*pc.Size())
		raw[3] = 7
		test.That(t, pc.VoidData("LABEL").([]byte)[3], test.ShouldEqual, byte(7))
	})

	t.Run("typed access", func(t *testing.T) {
		test.That(t, Data[float32](pc, Positions), test.ShouldBeNil)
		test.That(t, Data[r3.Vector](pc, "MISSING"), test.ShouldBeNil)
		test.That(t, pc.VoidData("MISSING"), test.ShouldBeNil)
		test.That(t, Data[r3.Vector](pc, Normals)[2], test.ShouldResemble, r3.Vector{Z: 1})
		test.That(t, pc.Colors()[2], test.ShouldResemble, colorful.Color{R: 1, G: 0.5, B: 1})
		test.That(t, pc.Intensities(), test.ShouldResemble, []float32{0, 10, 20})

		uvs := pc.AddUVs()
		test.That(t, uvs.Type(), test.ShouldEqual, FVec2)
		pc.UVs()[1] = r2.Point{X: 0.5, Y: 0.25}
		test.That(t, Data[r2.Point](pc, UVs)[1], test.ShouldResemble, r2.Point{X: 0.5, Y: 0.25})
	})

	t.Run("insertion order", func(t *testing.T) {
		var keys []string
		for _, p := range pc.Properties() {
			keys = append(keys, p.Key())
		}
		test.That(t, keys, test.ShouldResemble, []string{Positions, Normals, Colors, Intensities, "WEIGHT", "LABEL", UVs})
	})

	t.Run("remove", func(t *testing.T) {
		test.That(t, pc.RemoveProperty("WEIGHT"), test.ShouldBeTrue)
		test.That(t, pc.RemoveProperty("WEIGHT"), test.ShouldBeFalse)
		test.That(t, pc.HasProperty("WEIGHT"), test.ShouldBeFalse)
		p, ok := pc.Property("LABEL")
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, p.Key(), test.ShouldEqual, "LABEL")
		test.That(t, pc.String(), test.ShouldContainSubstring, "LABEL")
	})
}

func TestColor4fProperty(t *testing.T) {
	pc := NewFromPositions([]r3.Vector{{X: 0}, {X: 1}, {X: 2}, {X: 3}})
	p, err := pc.AddProperty("TINT", Color4f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.BytesPerPoint(), test.ShouldEqual, 16)
	test.That(t, p.Type().String(), test.ShouldEqual, "color4f")

	tint := Data[ColorRGBA](pc, "TINT")
	test.That(t, len(tint), test.ShouldEqual, 4)
	for i := range tint {
		tint[i] = ColorRGBA{Color: colorful.Color{R: 1}, A: float64(i)}
	}

	test.That(t, pc.Resize(5), test.ShouldBeTrue)
	checkSizeInvariant(t, pc)
	pc.Positions()[4] = r3.Vector{X: 4}
	Data[ColorRGBA](pc, "TINT")[4] = ColorRGBA{A: 4}

	test.That(t, pc.Erase([]int{0}), test.ShouldBeTrue)
	checkSizeInvariant(t, pc)
	tint = Data[ColorRGBA](pc, "TINT")
	test.That(t, len(tint), test.ShouldEqual, 4)
	test.That(t, tint[0], test.ShouldResemble, ColorRGBA{A: 4})
	for i := 1; i < 4; i++ {
		test.That(t, tint[i].A, test.ShouldEqual, float64(i))
		test.That(t, pc.Positions()[i].X, test.ShouldEqual, float64(i))
	}
	test.That(t, pc.Positions()[0], test.ShouldResemble, r3.Vector{X: 4})
}

func TestAppend(t *testing.T) {
	a := MakeTestPointCloud()
	b := NewFromPositions([]r3.Vector{{X: 5}, {X: 6}})
	b.AddProperty("EXTRA", Float)

	test.That(t, a.Append(b), test.ShouldBeTrue)
	test.That(t, a.Size(), test.ShouldEqual, 5)
	test.That(t, a.Positions()[3], test.ShouldResemble, r3.Vector{X: 5})
	test.That(t, a.Positions()[4], test.ShouldResemble, r3.Vector{X: 6})
	test.That(t, a.HasProperty("EXTRA"), test.ShouldBeFalse)
	checkSizeInvariant(t, a)

	t.Run("clone properties first to opt in", func(t *testing.T) {
		c := New()
		c.ClonePropertiesOf(b)
		test.That(t, c.HasProperty("EXTRA"), test.ShouldBeTrue)
		Data[float32](b, "EXTRA")[1] = 3
		test.That(t, c.Append(b), test.ShouldBeTrue)
		test.That(t, Data[float32](c, "EXTRA"), test.ShouldResemble, []float32{0, 3})
	})

	t.Run("layout mismatch fails without mutation", func(t *testing.T) {
		c := NewFromPositions([]r3.Vector{{X: 1}})
		c.AddProperty("EXTRA", FVec3)
		gen := c.Generation()
		test.That(t, c.Append(b), test.ShouldBeFalse)
		test.That(t, c.Size(), test.ShouldEqual, 1)
		test.That(t, c.Generation(), test.ShouldEqual, gen)
		checkSizeInvariant(t, c)
	})

	t.Run("append to itself", func(t *testing.T) {
		c := NewFromPositions([]r3.Vector{{X: 1}, {X: 2}})
		test.That(t, c.Append(c), test.ShouldBeTrue)
		test.That(t, c.Positions(), test.ShouldResemble, []r3.Vector{{X: 1}, {X: 2}, {X: 1}, {X: 2}})
	})
}

func TestCloneAndIdentity(t *testing.T) {
	pc := MakeTestPointCloud()
	c := pc.Clone()
	test.That(t, c.ID(), test.ShouldNotEqual, pc.ID())
	test.That(t, c.Positions(), test.ShouldResemble, pc.Positions())
	c.Positions()[0] = r3.Vector{X: 42}
	test.That(t, pc.Positions()[0], test.ShouldResemble, r3.Vector{})

	snap := pc.Snapshot()
	test.That(t, snap.Matches(pc), test.ShouldBeTrue)
	test.That(t, snap.Matches(c), test.ShouldBeFalse)
	test.That(t, snap.Matches(nil), test.ShouldBeFalse)
	pc.MarkModified()
	test.That(t, snap.Matches(pc), test.ShouldBeFalse)
}

func TestTransform(t *testing.T) {
	pc := MakeTestPointCloud()
	gen := pc.Generation()
	m := mgl64.Translate3D(0, 0, 10).Mul4(mgl64.HomogRotate3DX(math.Pi / 2))
	pc.Transform(m, nil)
	test.That(t, pc.Generation(), test.ShouldNotEqual, gen)
	test.That(t, pc.HasSpace(), test.ShouldBeFalse)

	p := pc.Positions()[2]
	test.That(t, p.X, test.ShouldAlmostEqual, 0.)
	test.That(t, p.Y, test.ShouldAlmostEqual, 0.)
	test.That(t, p.Z, test.ShouldAlmostEqual, 11.)

	n := pc.Normals()[0]
	test.That(t, n.X, test.ShouldAlmostEqual, 0.)
	test.That(t, n.Y, test.ShouldAlmostEqual, -1.)
	test.That(t, n.Z, test.ShouldAlmostEqual, 0.)

	t.Run("spaces", func(t *testing.T) {
		pc := NewFromPositions([]r3.Vector{{X: 1000, Y: 2000, Z: 3000}})
		meters := spatialmath.DefaultSpace
		meters.Units = spatialmath.Meters
		test.That(t, pc.TransformToSpace(meters), test.ShouldBeFalse)

		pc.SetSpace(&spatialmath.DefaultSpace)
		test.That(t, pc.TransformToSpace(meters), test.ShouldBeTrue)
		space, ok := pc.Space()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, space.Units, test.ShouldEqual, spatialmath.Meters)
		got := pc.Positions()[0]
		test.That(t, got.X, test.ShouldAlmostEqual, 1.)
		test.That(t, got.Y, test.ShouldAlmostEqual, 2.)
		test.That(t, got.Z, test.ShouldAlmostEqual, 3.)

		pc.SetSpace(nil)
		test.That(t, pc.HasSpace(), test.ShouldBeFalse)
	})
}

func TestBounds(t *testing.T) {
	test.That(t, Bounds(New()).IsEmpty(), test.ShouldBeTrue)

	pc := NewFromPositions([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 5, Y: 5, Z: 5}})
	test.That(t, Bounds(pc), test.ShouldResemble, spatialmath.Box{Max: r3.Vector{X: 5, Y: 5, Z: 5}})

	box := spatialmath.NewBox(r3.Vector{X: -1, Y: -1, Z: -1}, r3.Vector{X: 1, Y: 1, Z: 1})
	test.That(t, ErasePointsOutsideBox(box, pc), test.ShouldBeTrue)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	test.That(t, Bounds(pc), test.ShouldResemble, spatialmath.Box{Max: r3.Vector{X: 1}})
}

func TestStatistics(t *testing.T) {
	empty := ComputeStatistics(New())
	test.That(t, empty.Count, test.ShouldEqual, 0)
	test.That(t, PositionMatrix(New()), test.ShouldBeNil)

	pc := NewFromPositions([]r3.Vector{{X: -1}, {X: 1}, {X: -1, Y: 2}, {X: 1, Y: 2}})
	s := ComputeStatistics(pc)
	test.That(t, s.Count, test.ShouldEqual, 4)
	test.That(t, s.Mean, test.ShouldResemble, r3.Vector{X: 0, Y: 1, Z: 0})
	test.That(t, s.Bounds, test.ShouldResemble, r3.Vector{X: 2, Y: 2})
	test.That(t, s.StdDev.Z, test.ShouldEqual, 0.)
	test.That(t, Centroid(pc), test.ShouldResemble, r3.Vector{Y: 1})

	single := ComputeStatistics(NewFromPositions([]r3.Vector{{X: 3}}))
	test.That(t, single.StdDev, test.ShouldResemble, r3.Vector{})

	rows, cols := PositionMatrix(pc).Dims()
	test.That(t, rows, test.ShouldEqual, 4)
	test.That(t, cols, test.ShouldEqual, 3)

	t.Run("principal axes", func(t *testing.T) {
		line := New()
		line.Resize(10)
		for i := range line.Positions() {
			line.Positions()[i] = r3.Vector{X: float64(i), Y: 0.01 * float64(i%2)}
		}
		axes, variances, err := PrincipalAxes(line)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, math.Abs(axes[0].X), test.ShouldAlmostEqual, 1., 1e-3)
		test.That(t, variances[0], test.ShouldBeGreaterThan, variances[1])

		_, _, err = PrincipalAxes(NewFromPositions([]r3.Vector{{}}))
		test.That(t, err, test.ShouldNotBeNil)
	})
}
