package pointcloud

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/skeletex/cogs/logging"
)

// Coordinates beyond this magnitude lose precision when stored as LAS scaled integers.
const (
	maxPreciseFloat64 = float64(1 << 31)
	minPreciseFloat64 = -maxPreciseFloat64
)

// NewFromFile reads a cloud from a .pcd or .las file.
func NewFromFile(fn string, logger logging.Logger) (*PointCloud, error) {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".las":
		return ReadLASFile(fn, logger)
	case ".pcd":
		//nolint:gosec
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				logger.Debugw("failed to close pcd file", "file", fn, "error", cerr)
			}
		}()
		return ReadPCD(f)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// WriteToFile writes the cloud to a .pcd (binary) or .las file.
func WriteToFile(pc *PointCloud, fn string) (err error) {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".las":
		return WriteLASFile(pc, fn)
	case ".pcd":
		var f *os.File
		//nolint:gosec
		f, err = os.Create(fn)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, f.Close())
		}()
		return WritePCD(pc, f, PCDBinary)
	default:
		return errors.Errorf("do not know how to write file %q", fn)
	}
}

// ReadLASFile reads positions, intensities and, for point format 2, colors from a LAS file.
// Points whose coordinates may lose precision are reported but are not an error.
func ReadLASFile(fn string, logger logging.Logger) (pc *PointCloud, err error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, errors.Wrapf(err, "opening las file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	pc = New()
	pc.Resize(lf.Header.NumberPoints)
	positions := pc.Positions()
	pc.AddIntensities()
	hasColor := lf.Header.PointFormatID == 2
	if hasColor {
		pc.AddColors()
	}
	intensityData := pc.Intensities()
	colors := pc.Colors()

	warned := false
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, errors.Wrapf(err, "reading las point %d", i)
		}
		data := p.PointData()
		x, y, z := data.X, data.Y, data.Z
		if !warned && (x < minPreciseFloat64 || x > maxPreciseFloat64 ||
			y < minPreciseFloat64 || y > maxPreciseFloat64 ||
			z < minPreciseFloat64 || z > maxPreciseFloat64) {
			logger.Warnw("potential floating point lossiness for LAS point",
				"index", i, "x", x, "y", y, "z", z)
			warned = true
		}
		positions[i] = r3.Vector{X: x, Y: y, Z: z}
		intensityData[i] = float32(data.Intensity)
		if hasColor {
			if rgb := p.RgbData(); rgb != nil {
				colors[i] = colorful.Color{
					R: float64(rgb.Red/256) / 255,
					G: float64(rgb.Green/256) / 255,
					B: float64(rgb.Blue/256) / 255,
				}
			}
		}
	}
	pc.MarkModified()
	return pc, nil
}

// WriteLASFile writes positions, intensities and colors to a LAS file. Point format 2 is used
// when the cloud has colors.
func WriteLASFile(pc *PointCloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return errors.Wrapf(err, "creating las file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	colors := pc.Colors()
	intensities := pc.Intensities()
	pointFormatID := 0
	if colors != nil {
		pointFormatID = 2
	}
	if err = lf.AddHeader(lidario.LasHeader{PointFormatID: byte(pointFormatID)}); err != nil {
		return err
	}

	for i, pos := range pc.Positions() {
		pr0 := &lidario.PointRecord0{
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			PointSourceID: 1,
		}
		if intensities != nil {
			pr0.Intensity = uint16(math.Max(0, math.Min(math.MaxUint16, float64(intensities[i]))))
		}
		var lp lidario.LasPointer = pr0
		if colors != nil {
			r, g, b := colors[i].Clamped().RGB255()
			lp = &lidario.PointRecord2{
				PointRecord0: pr0,
				RGB: &lidario.RgbData{
					Red:   uint16(r) * 256,
					Green: uint16(g) * 256,
					Blue:  uint16(b) * 256,
				},
			}
		}
		if err = lf.AddLasPoint(lp); err != nil {
			return errors.Wrapf(err, "writing las point %d", i)
		}
	}
	return nil
}
