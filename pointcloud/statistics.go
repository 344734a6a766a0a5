package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Statistics summarizes the positions of a cloud.
type Statistics struct {
	Count  int
	Bounds r3.Vector
	Mean   r3.Vector
	StdDev r3.Vector
}

// PositionMatrix returns the positions as an n x 3 matrix, or nil for an empty cloud.
func PositionMatrix(pc *PointCloud) *mat.Dense {
	positions := pc.Positions()
	if len(positions) == 0 {
		return nil
	}
	data := make([]float64, 0, 3*len(positions))
	for _, p := range positions {
		data = append(data, p.X, p.Y, p.Z)
	}
	return mat.NewDense(len(positions), 3, data)
}

// Centroid returns the mean position, the zero vector for an empty cloud.
func Centroid(pc *PointCloud) r3.Vector {
	return ComputeStatistics(pc).Mean
}

// ComputeStatistics returns the per axis mean and standard deviation of the positions.
func ComputeStatistics(pc *PointCloud) Statistics {
	s := Statistics{Count: pc.Size()}
	m := PositionMatrix(pc)
	if m == nil {
		return s
	}
	s.Bounds = Bounds(pc).Size()
	var mean, std [3]float64
	col := make([]float64, pc.Size())
	for axis := 0; axis < 3; axis++ {
		mat.Col(col, axis, m)
		mean[axis], std[axis] = stat.MeanStdDev(col, nil)
		if pc.Size() == 1 {
			std[axis] = 0
		}
	}
	s.Mean = r3.Vector{X: mean[0], Y: mean[1], Z: mean[2]}
	s.StdDev = r3.Vector{X: std[0], Y: std[1], Z: std[2]}
	return s
}

// PrincipalAxes returns the principal directions of the positions ordered by decreasing variance
// together with the variances along them.
func PrincipalAxes(pc *PointCloud) ([3]r3.Vector, [3]float64, error) {
	var axes [3]r3.Vector
	var variances [3]float64
	if pc.Size() < 2 {
		return axes, variances, errors.Errorf("need at least 2 points for principal axes, have %d", pc.Size())
	}
	var pca stat.PC
	if ok := pca.PrincipalComponents(PositionMatrix(pc), nil); !ok {
		return axes, variances, errors.New("principal component analysis failed")
	}
	var vecs mat.Dense
	pca.VectorsTo(&vecs)
	vars := pca.VarsTo(nil)
	for i := 0; i < 3 && i < len(vars); i++ {
		axes[i] = r3.Vector{X: vecs.At(0, i), Y: vecs.At(1, i), Z: vecs.At(2, i)}
		variances[i] = vars[i]
	}
	return axes, variances, nil
}
