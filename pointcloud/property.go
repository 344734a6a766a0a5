package pointcloud

// Well known property keys.
const (
	Positions   = "POSITIONS"
	Normals     = "NORMALS"
	Colors      = "COLORS"
	UVs         = "UVS"
	Intensities = "INTENSITIES"
)

// Property is a named column of per point data. Every property of a cloud holds exactly Size
// elements.
type Property struct {
	key           string
	dataType      DataType
	bytesPerPoint int
	col           column
}

// Key returns the name of the property.
func (p *Property) Key() string { return p.key }

// Type returns the declared element type, Unknown for raw properties.
func (p *Property) Type() DataType { return p.dataType }

// BytesPerPoint returns the packed size of one element.
func (p *Property) BytesPerPoint() int { return p.bytesPerPoint }

// Len returns the number of elements held by the property.
func (p *Property) Len() int { return p.col.Len() }

// compatible reports whether other can be copied into p element by element.
func (p *Property) compatible(other *Property) bool {
	return p.dataType == other.dataType && p.bytesPerPoint == other.bytesPerPoint && p.col.sameLayout(other.col)
}

func (p *Property) clone() *Property {
	return &Property{key: p.key, dataType: p.dataType, bytesPerPoint: p.bytesPerPoint, col: p.col.clone()}
}
