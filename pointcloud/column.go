package pointcloud

// column is the storage behind one property. All columns of a cloud hold the same number of
// elements; capacity is managed by the owning cloud.
type column interface {
	// Len returns the number of live elements.
	Len() int
	// resize changes the number of live elements. New elements are not initialized.
	resize(n int)
	// reserve makes room for at least n elements without changing Len.
	reserve(n int)
	// shrink releases capacity beyond Len.
	shrink()
	// move copies length elements starting at source to target. The ranges must not overlap.
	move(source, target, length int)
	// copyFrom writes the elements of other to this column starting at offset. It returns false
	// if the layouts differ.
	copyFrom(other column, offset int) bool
	// sameLayout reports whether other stores the same element type.
	sameLayout(other column) bool
	// empty returns a new column with the same layout and no elements.
	empty() column
	clone() column
	// raw returns the backing slice.
	raw() any
}

// typedColumn stores elements of a declared DataType.
type typedColumn[T any] struct {
	data []T
}

func (c *typedColumn[T]) Len() int { return len(c.data) }

func (c *typedColumn[T]) resize(n int) {
	if n <= cap(c.data) {
		c.data = c.data[:n]
		return
	}
	grown := make([]T, n)
	copy(grown, c.data)
	c.data = grown
}

func (c *typedColumn[T]) reserve(n int) {
	if n <= cap(c.data) {
		return
	}
	grown := make([]T, len(c.data), n)
	copy(grown, c.data)
	c.data = grown
}

func (c *typedColumn[T]) shrink() {
	if cap(c.data) == len(c.data) {
		return
	}
	c.data = append([]T(nil), c.data...)
}

func (c *typedColumn[T]) move(source, target, length int) {
	copy(c.data[target:target+length], c.data[source:source+length])
}

func (c *typedColumn[T]) copyFrom(other column, offset int) bool {
	o, ok := other.(*typedColumn[T])
	if !ok {
		return false
	}
	copy(c.data[offset:], o.data)
	return true
}

func (c *typedColumn[T]) sameLayout(other column) bool {
	_, ok := other.(*typedColumn[T])
	return ok
}

func (c *typedColumn[T]) empty() column { return &typedColumn[T]{} }

func (c *typedColumn[T]) clone() column {
	return &typedColumn[T]{data: append(make([]T, 0, cap(c.data)), c.data...)}
}

func (c *typedColumn[T]) raw() any { return c.data }

// rawColumn stores a fixed number of opaque bytes per element.
type rawColumn struct {
	stride int
	data   []byte
}

func (c *rawColumn) Len() int {
	if c.stride == 0 {
		return 0
	}
	return len(c.data) / c.stride
}

func (c *rawColumn) resize(n int) {
	want := n * c.stride
	if want <= cap(c.data) {
		c.data = c.data[:want]
		return
	}
	grown := make([]byte, want)
	copy(grown, c.data)
	c.data = grown
}

func (c *rawColumn) reserve(n int) {
	want := n * c.stride
	if want <= cap(c.data) {
		return
	}
	grown := make([]byte, len(c.data), want)
	copy(grown, c.data)
	c.data = grown
}

func (c *rawColumn) shrink() {
	if cap(c.data) == len(c.data) {
		return
	}
	c.data = append([]byte(nil), c.data...)
}

func (c *rawColumn) move(source, target, length int) {
	s, t, l := source*c.stride, target*c.stride, length*c.stride
	copy(c.data[t:t+l], c.data[s:s+l])
}

func (c *rawColumn) copyFrom(other column, offset int) bool {
	o, ok := other.(*rawColumn)
	if !ok || o.stride != c.stride {
		return false
	}
	copy(c.data[offset*c.stride:], o.data)
	return true
}

func (c *rawColumn) sameLayout(other column) bool {
	o, ok := other.(*rawColumn)
	return ok && o.stride == c.stride
}

func (c *rawColumn) empty() column { return &rawColumn{stride: c.stride} }

func (c *rawColumn) clone() column {
	return &rawColumn{stride: c.stride, data: append(make([]byte, 0, cap(c.data)), c.data...)}
}

func (c *rawColumn) raw() any { return c.data }
