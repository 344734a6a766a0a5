package spatialmath

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Units are the distance measurement units positions may be expressed in.
type Units uint8

// Supported distance units.
const (
	Kilometers Units = iota
	Meters
	Decimeters
	Centimeters
	Millimeters
	Micrometers
	Nanometers
	Miles
	Feet
	Inches
)

// unitsPerMeter holds how many of each unit make up a meter.
var unitsPerMeter = map[Units]float64{
	Kilometers:  0.001,
	Meters:      1,
	Decimeters:  10,
	Centimeters: 100,
	Millimeters: 1000,
	Micrometers: 1e6,
	Nanometers:  1e9,
	Miles:       0.0006213712,
	Feet:        3.280839935991,
	Inches:      39.37007923189,
}

var unitAbbreviations = map[Units]string{
	Kilometers:  "km",
	Meters:      "m",
	Decimeters:  "dm",
	Centimeters: "cm",
	Millimeters: "mm",
	Micrometers: "um",
	Nanometers:  "nm",
	Miles:       "mi",
	Feet:        "ft",
	Inches:      "in",
}

func (u Units) String() string {
	if s, ok := unitAbbreviations[u]; ok {
		return s
	}
	return fmt.Sprintf("units(%d)", uint8(u))
}

// ParseUnits converts an abbreviation such as "mm" back to Units.
func ParseUnits(s string) (Units, error) {
	for u, abbrev := range unitAbbreviations {
		if abbrev == s {
			return u, nil
		}
	}
	return Meters, errors.Errorf("unknown units %q", s)
}

// UnitConversionRatio returns the ratio r such that target = source * r.
func UnitConversionRatio(source, target Units) float64 {
	return unitsPerMeter[target] / unitsPerMeter[source]
}

// BaseAxis is a signed coordinate axis.
type BaseAxis uint8

// Signed coordinate axes.
const (
	PositiveX BaseAxis = iota
	PositiveY
	PositiveZ
	NegativeX
	NegativeY
	NegativeZ
)

// Vec3 returns the unit vector along the signed axis.
func (a BaseAxis) Vec3() mgl64.Vec3 {
	switch a {
	case PositiveX:
		return mgl64.Vec3{1, 0, 0}
	case PositiveY:
		return mgl64.Vec3{0, 1, 0}
	case PositiveZ:
		return mgl64.Vec3{0, 0, 1}
	case NegativeX:
		return mgl64.Vec3{-1, 0, 0}
	case NegativeY:
		return mgl64.Vec3{0, -1, 0}
	case NegativeZ:
		return mgl64.Vec3{0, 0, -1}
	}
	return mgl64.Vec3{}
}

// Handedness of a coordinate basis.
type Handedness uint8

// Supported handedness values.
const (
	RightHanded Handedness = iota
	LeftHanded
)

// BasisDefinition describes a coordinate basis by its up and forward axes.
type BasisDefinition struct {
	ID         string
	Up         BaseAxis
	Forward    BaseAxis
	Handedness Handedness
}

// Matrix returns the basis matrix whose columns are the side, up and forward axes.
func (b BasisDefinition) Matrix() mgl64.Mat3 {
	up := b.Up.Vec3()
	fwd := b.Forward.Vec3()
	side := up.Cross(fwd)
	if b.Handedness == LeftHanded {
		side = fwd.Cross(up)
	}
	return mgl64.Mat3FromCols(side, up, fwd)
}

// Equal compares the geometric meaning of two bases. IDs are ignored.
func (b BasisDefinition) Equal(other BasisDefinition) bool {
	return b.Up == other.Up && b.Forward == other.Forward && b.Handedness == other.Handedness
}

// SpaceDefinition tags the coordinate frame and units point positions are expressed in.
type SpaceDefinition struct {
	BasisDefinition
	Units Units
}

// DefaultSpace is a right handed, y up, z forward space measured in millimeters.
var DefaultSpace = SpaceDefinition{
	BasisDefinition: BasisDefinition{ID: "custom", Up: PositiveY, Forward: PositiveZ, Handedness: RightHanded},
	Units:           Millimeters,
}

// Equal compares basis and units.
func (s SpaceDefinition) Equal(other SpaceDefinition) bool {
	return s.BasisDefinition.Equal(other.BasisDefinition) && s.Units == other.Units
}

// TransformTo returns the matrix converting coordinates from s to target, including unit scaling.
func (s SpaceDefinition) TransformTo(target SpaceDefinition) mgl64.Mat4 {
	if s.Equal(target) {
		return mgl64.Ident4()
	}
	basis := target.Matrix().Mul3(s.Matrix().Inv())
	ratio := UnitConversionRatio(s.Units, target.Units)
	return basis.Mul(ratio).Mat4()
}

func (s SpaceDefinition) String() string {
	return fmt.Sprintf("%s[up=%v forward=%v units=%v]", s.ID, s.Up.Vec3(), s.Forward.Vec3(), s.Units)
}
