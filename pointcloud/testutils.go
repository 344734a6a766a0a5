package pointcloud

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
)

// MakeTestPointCloud creates a test point cloud with 3 points at the origin, (1, 0, 0) and (0, 1, 0).
// Every point has a normal, a color and an intensity.
func MakeTestPointCloud() *PointCloud {
	pc := NewFromPositions([]r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
	})
	pc.AddNormals()
	pc.AddColors()
	pc.AddIntensities()
	for i := range pc.Size() {
		pc.Normals()[i] = r3.Vector{Z: 1}
		pc.Colors()[i] = colorful.Color{R: float64(i) / 2, G: 0.5, B: 1}
		pc.Intensities()[i] = float32(i * 10)
	}
	return pc
}

// MakeRandomPointCloud creates a cloud of n points uniformly distributed in the cube
// [-extent, extent]^3. Each point's intensity holds its original index.
func MakeRandomPointCloud(n int, extent float64, seed int64) *PointCloud {
	//nolint:gosec
	r := rand.New(rand.NewSource(seed))
	coord := func() float64 { return (r.Float64()*2 - 1) * extent }
	pc := New()
	pc.Resize(n)
	pc.AddIntensities()
	positions := pc.Positions()
	intensities := pc.Intensities()
	for i := range positions {
		positions[i] = r3.Vector{X: coord(), Y: coord(), Z: coord()}
		intensities[i] = float32(i)
	}
	return pc
}
