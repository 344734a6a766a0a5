// Package pointcloud defines a columnar point cloud: a set of points whose per point data is
// held in named, typed properties that all share one point count.
//
// Slices returned by Data and the typed accessors alias the cloud's storage. They must not be
// retained across a call that changes the size or capacity of the cloud.
package pointcloud

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/skeletex/cogs/spatialmath"
)

// PointCloud is a general purpose container of points. By default only the Positions property
// exists; any number of custom properties can be added and are kept for every point.
type PointCloud struct {
	id         uuid.UUID
	generation uint64

	size     int
	capacity int

	properties []*Property
	keyIndex   map[string]int

	space *spatialmath.SpaceDefinition

	// observer receives structural changes for types that keep per point state outside the
	// property columns.
	observer layoutObserver
}

// layoutObserver is implemented by wrappers, such as Scan, that track point indices.
type layoutObserver interface {
	// allowResize reports whether direct size changes through Resize and Append are allowed.
	allowResize() bool
	// compacted is called after an erase has executed its copy commands and truncated the cloud.
	compacted(cmds []CopyCommand, erased []int, newSize int)
	cleared()
}

// New returns an empty cloud holding only the Positions property.
func New() *PointCloud {
	pc := &PointCloud{id: uuid.New(), keyIndex: map[string]int{}}
	pc.addColumn(Positions, FVec3, FVec3.BytesPerPoint(), newColumn(FVec3))
	return pc
}

// NewFromPositions returns a cloud holding a copy of the given positions.
func NewFromPositions(positions []r3.Vector) *PointCloud {
	pc := New()
	pc.Resize(len(positions))
	copy(pc.Positions(), positions)
	return pc
}

// ID returns the identity of the cloud. Clones receive a new identity.
func (pc *PointCloud) ID() uuid.UUID {
	return pc.id
}

// Generation returns a counter that changes whenever the point set of the cloud changes.
func (pc *PointCloud) Generation() uint64 {
	return pc.generation
}

// MarkModified bumps the generation. Call it after writing positions through a data slice so that
// indices built earlier report themselves as stale.
func (pc *PointCloud) MarkModified() {
	pc.generation++
}

// Size returns the number of points in the cloud.
func (pc *PointCloud) Size() int {
	return pc.size
}

// Capacity returns the number of points the cloud can hold without reallocating.
func (pc *PointCloud) Capacity() int {
	return pc.capacity
}

// Resize sets the number of points. New points are not initialized. It returns false if the cloud
// is owned by a wrapper that manages its size, such as a Scan.
func (pc *PointCloud) Resize(n int) bool {
	if n < 0 || (pc.observer != nil && !pc.observer.allowResize()) {
		return false
	}
	pc.resize(n)
	return true
}

func (pc *PointCloud) resize(n int) {
	pc.grow(n)
	for _, p := range pc.properties {
		p.col.resize(n)
	}
	pc.size = n
	pc.generation++
}

// grow makes room for n points, at least doubling the capacity when it has to reallocate.
func (pc *PointCloud) grow(n int) {
	if n <= pc.capacity {
		return
	}
	pc.reserve(max(n, 2*pc.capacity))
}

// Reserve ensures that at least n points fit without reallocating. Size is unchanged.
func (pc *PointCloud) Reserve(n int) {
	if n <= pc.capacity {
		return
	}
	pc.reserve(n)
}

func (pc *PointCloud) reserve(n int) {
	for _, p := range pc.properties {
		p.col.reserve(n)
	}
	pc.capacity = n
}

// ShrinkToFit frees spare memory so that the capacity matches the size.
func (pc *PointCloud) ShrinkToFit() {
	for _, p := range pc.properties {
		p.col.shrink()
	}
	pc.capacity = pc.size
}

// Clear removes all points. Properties and capacity are kept.
func (pc *PointCloud) Clear() {
	for _, p := range pc.properties {
		p.col.resize(0)
	}
	pc.size = 0
	pc.generation++
	if pc.observer != nil {
		pc.observer.cleared()
	}
}

// Append grows the cloud by the size of other and copies data of the properties present in both
// clouds. Properties that only other has are skipped; call ClonePropertiesOf first to keep them.
// It returns false without changing anything if a shared property has a different layout.
func (pc *PointCloud) Append(other *PointCloud) bool {
	if pc.observer != nil && !pc.observer.allowResize() {
		return false
	}
	if other == nil {
		return true
	}
	type pair struct{ dst, src *Property }
	var shared []pair
	for _, p := range pc.properties {
		o, ok := other.Property(p.key)
		if !ok {
			continue
		}
		if !p.compatible(o) {
			return false
		}
		shared = append(shared, pair{p, o})
	}
	offset, added := pc.size, other.size
	pc.resize(offset + added)
	for _, s := range shared {
		s.dst.col.copyFrom(s.src.col, offset)
	}
	return true
}

// AddProperty creates a property holding elements of the given type sized to the cloud. If a
// property with the key exists it is returned as is.
func (pc *PointCloud) AddProperty(key string, dataType DataType) (*Property, error) {
	if p, ok := pc.Property(key); ok {
		return p, nil
	}
	col := newColumn(dataType)
	if col == nil {
		return nil, errors.Errorf("cannot add property %q with data type %v", key, dataType)
	}
	return pc.addColumn(key, dataType, dataType.BytesPerPoint(), col), nil
}

// AddRawProperty creates a property storing bytesPerPoint opaque bytes per point. If a property
// with the key exists it is returned as is.
func (pc *PointCloud) AddRawProperty(key string, bytesPerPoint int) (*Property, error) {
	if p, ok := pc.Property(key); ok {
		return p, nil
	}
	if bytesPerPoint <= 0 {
		return nil, errors.Errorf("cannot add property %q with %d bytes per point", key, bytesPerPoint)
	}
	return pc.addColumn(key, Unknown, bytesPerPoint, &rawColumn{stride: bytesPerPoint}), nil
}

func (pc *PointCloud) addColumn(key string, dataType DataType, bytesPerPoint int, col column) *Property {
	col.reserve(pc.capacity)
	col.resize(pc.size)
	p := &Property{key: key, dataType: dataType, bytesPerPoint: bytesPerPoint, col: col}
	pc.keyIndex[key] = len(pc.properties)
	pc.properties = append(pc.properties, p)
	return p
}

// addWellKnown adds a property whose type is known to be valid.
func (pc *PointCloud) addWellKnown(key string, dataType DataType) *Property {
	if p, ok := pc.Property(key); ok {
		return p
	}
	return pc.addColumn(key, dataType, dataType.BytesPerPoint(), newColumn(dataType))
}

// RemoveProperty deletes the property with the given key. It returns false if there is none.
func (pc *PointCloud) RemoveProperty(key string) bool {
	i, ok := pc.keyIndex[key]
	if !ok {
		return false
	}
	pc.properties = append(pc.properties[:i], pc.properties[i+1:]...)
	delete(pc.keyIndex, key)
	for j := i; j < len(pc.properties); j++ {
		pc.keyIndex[pc.properties[j].key] = j
	}
	return true
}

// ClonePropertiesOf adds every property of other that the cloud lacks. Data is not copied.
func (pc *PointCloud) ClonePropertiesOf(other *PointCloud) {
	for _, o := range other.properties {
		if pc.HasProperty(o.key) {
			continue
		}
		pc.addColumn(o.key, o.dataType, o.bytesPerPoint, o.col.empty())
	}
}

// HasProperty reports whether a property with the key exists.
func (pc *PointCloud) HasProperty(key string) bool {
	_, ok := pc.keyIndex[key]
	return ok
}

// Property returns the property with the given key.
func (pc *PointCloud) Property(key string) (*Property, bool) {
	i, ok := pc.keyIndex[key]
	if !ok {
		return nil, false
	}
	return pc.properties[i], true
}

// Properties returns the properties in insertion order.
func (pc *PointCloud) Properties() []*Property {
	return append([]*Property(nil), pc.properties...)
}

// VoidData returns the backing slice of a property, such as []r3.Vector or []byte, or nil if the
// property does not exist.
func (pc *PointCloud) VoidData(key string) any {
	p, ok := pc.Property(key)
	if !ok {
		return nil
	}
	return p.col.raw()
}

// Data returns the elements of a property as a typed slice. It returns nil if the property does
// not exist or does not hold elements of type T.
func Data[T any](pc *PointCloud, key string) []T {
	data, _ := pc.VoidData(key).([]T)
	return data
}

// Positions returns the point positions.
func (pc *PointCloud) Positions() []r3.Vector {
	return Data[r3.Vector](pc, Positions)
}

// HasNormals reports whether the Normals property exists.
func (pc *PointCloud) HasNormals() bool {
	return pc.HasProperty(Normals)
}

// Normals returns the point normals, or nil if the property does not exist.
func (pc *PointCloud) Normals() []r3.Vector {
	return Data[r3.Vector](pc, Normals)
}

// AddNormals creates the Normals property if needed.
func (pc *PointCloud) AddNormals() *Property {
	return pc.addWellKnown(Normals, FVec3)
}

// HasColors reports whether the Colors property exists.
func (pc *PointCloud) HasColors() bool {
	return pc.HasProperty(Colors)
}

// Colors returns the point colors, or nil if the property does not exist.
func (pc *PointCloud) Colors() []colorful.Color {
	return Data[colorful.Color](pc, Colors)
}

// AddColors creates the Colors property if needed.
func (pc *PointCloud) AddColors() *Property {
	return pc.addWellKnown(Colors, Color3f)
}

// HasIntensities reports whether the Intensities property exists.
func (pc *PointCloud) HasIntensities() bool {
	return pc.HasProperty(Intensities)
}

// Intensities returns the point intensities, or nil if the property does not exist.
func (pc *PointCloud) Intensities() []float32 {
	return Data[float32](pc, Intensities)
}

// AddIntensities creates the Intensities property if needed.
func (pc *PointCloud) AddIntensities() *Property {
	return pc.addWellKnown(Intensities, Float)
}

// UVs returns the texture coordinates, or nil if the property does not exist.
func (pc *PointCloud) UVs() []r2.Point {
	return Data[r2.Point](pc, UVs)
}

// AddUVs creates the UVs property if needed.
func (pc *PointCloud) AddUVs() *Property {
	return pc.addWellKnown(UVs, FVec2)
}

// Clone returns a deep copy of the cloud with a new identity.
func (pc *PointCloud) Clone() *PointCloud {
	c := &PointCloud{
		id:         uuid.New(),
		size:       pc.size,
		capacity:   pc.capacity,
		properties: make([]*Property, 0, len(pc.properties)),
		keyIndex:   make(map[string]int, len(pc.keyIndex)),
	}
	for i, p := range pc.properties {
		c.properties = append(c.properties, p.clone())
		c.keyIndex[p.key] = i
	}
	if pc.space != nil {
		space := *pc.space
		c.space = &space
	}
	return c
}

// Transform applies m to positions and the linear part of m to normals, which are renormalized.
// If newSpace is not nil it becomes the space of the cloud.
func (pc *PointCloud) Transform(m mgl64.Mat4, newSpace *spatialmath.SpaceDefinition) {
	positions := pc.Positions()
	for i, p := range positions {
		positions[i] = spatialmath.TransformPoint(m, p)
	}
	normals := pc.Normals()
	for i, n := range normals {
		normals[i] = spatialmath.TransformDirection(m, n)
	}
	if newSpace != nil {
		pc.SetSpace(newSpace)
	}
	pc.generation++
}

// HasSpace reports whether the cloud is tagged with a space definition.
func (pc *PointCloud) HasSpace() bool {
	return pc.space != nil
}

// Space returns the space definition of the cloud.
func (pc *PointCloud) Space() (spatialmath.SpaceDefinition, bool) {
	if pc.space == nil {
		return spatialmath.SpaceDefinition{}, false
	}
	return *pc.space, true
}

// SetSpace tags the cloud with a space definition without touching the points. Nil clears it.
func (pc *PointCloud) SetSpace(space *spatialmath.SpaceDefinition) {
	if space == nil {
		pc.space = nil
		return
	}
	s := *space
	pc.space = &s
}

// TransformToSpace converts the points from the current space to target. It returns false if the
// cloud has no space.
func (pc *PointCloud) TransformToSpace(target spatialmath.SpaceDefinition) bool {
	if pc.space == nil {
		return false
	}
	pc.Transform(pc.space.TransformTo(target), &target)
	return true
}

func (pc *PointCloud) String() string {
	keys := make([]string, 0, len(pc.properties))
	for _, p := range pc.properties {
		keys = append(keys, fmt.Sprintf("%s:%v", p.key, p.dataType))
	}
	return fmt.Sprintf("PointCloud | Size: %d | Capacity: %d | Properties: [%s]",
		pc.size, pc.capacity, strings.Join(keys, " "))
}

// Snapshot identifies the state of a cloud an index was built from.
type Snapshot struct {
	CloudID    uuid.UUID
	Generation uint64
	Size       int
}

// Snapshot returns the current state descriptor of the cloud.
func (pc *PointCloud) Snapshot() Snapshot {
	return Snapshot{CloudID: pc.id, Generation: pc.generation, Size: pc.size}
}

// Matches reports whether the cloud is unchanged since the snapshot was taken.
func (s Snapshot) Matches(pc *PointCloud) bool {
	return pc != nil && s.CloudID == pc.id && s.Generation == pc.generation && s.Size == pc.size
}
