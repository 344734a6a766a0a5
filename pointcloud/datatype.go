package pointcloud

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
)

// DataType identifies the element type stored by a property.
type DataType uint8

// Supported element types. Unknown marks raw byte properties.
const (
	Unknown DataType = iota
	Float
	FVec2
	FVec3
	Color3f
	Color4f
)

// ColorRGBA is a color with an alpha channel, the element type of Color4f properties.
type ColorRGBA struct {
	colorful.Color
	A float64
}

// BytesPerPoint returns the packed size of one element of the type, or 0 for Unknown.
func (t DataType) BytesPerPoint() int {
	switch t {
	case Float:
		return 4
	case FVec2:
		return 8
	case FVec3, Color3f:
		return 12
	case Color4f:
		return 16
	default:
		return 0
	}
}

func (t DataType) String() string {
	switch t {
	case Unknown:
		return "unknown"
	case Float:
		return "float"
	case FVec2:
		return "fvec2"
	case FVec3:
		return "fvec3"
	case Color3f:
		return "color3f"
	case Color4f:
		return "color4f"
	}
	return fmt.Sprintf("datatype(%d)", uint8(t))
}

// newColumn returns an empty column holding elements of t.
func newColumn(t DataType) column {
	switch t {
	case Float:
		return &typedColumn[float32]{}
	case FVec2:
		return &typedColumn[r2.Point]{}
	case FVec3:
		return &typedColumn[r3.Vector]{}
	case Color3f:
		return &typedColumn[colorful.Color]{}
	case Color4f:
		return &typedColumn[ColorRGBA]{}
	default:
		return nil
	}
}
