package pointcloud

import (
	"slices"

	"github.com/golang/geo/r3"
)

// CopyCommand moves Length consecutive points starting at Source to Target.
type CopyCommand struct {
	Source int
	Target int
	Length int
}

// chunk is an inclusive run of consecutive point indices.
type chunk struct {
	first int
	last  int
}

func (c chunk) size() int {
	return c.last - c.first + 1
}

// indicesToChunks coalesces sorted, unique indices into runs.
func indicesToChunks(indices []int) []chunk {
	var chunks []chunk
	for _, idx := range indices {
		if n := len(chunks); n > 0 && chunks[n-1].last+1 == idx {
			chunks[n-1].last = idx
			continue
		}
		chunks = append(chunks, chunk{first: idx, last: idx})
	}
	return chunks
}

// eraseCopyCommands plans how to compact a cloud of the given size once the sorted, unique
// indices are gone. Erased slots below the new size are filled with the surviving points from
// the tail, so at most min(len(erased), size-len(erased)) points move.
func eraseCopyCommands(erased []int, size int) []CopyCommand {
	newSize := size - len(erased)

	var holes []chunk
	for _, c := range indicesToChunks(erased) {
		if c.first >= newSize {
			break
		}
		c.last = min(c.last, newSize-1)
		holes = append(holes, c)
	}
	if len(holes) == 0 {
		return nil
	}

	// survivors in the tail, as runs between the erased chunks
	var sources []chunk
	next := newSize
	for _, idx := range erased {
		if idx < newSize {
			continue
		}
		if idx > next {
			sources = append(sources, chunk{first: next, last: idx - 1})
		}
		next = idx + 1
	}
	if next < size {
		sources = append(sources, chunk{first: next, last: size - 1})
	}

	var cmds []CopyCommand
	h, s := 0, 0
	for h < len(holes) && s < len(sources) {
		n := min(holes[h].size(), sources[s].size())
		cmds = append(cmds, CopyCommand{Source: sources[s].first, Target: holes[h].first, Length: n})
		holes[h].first += n
		sources[s].first += n
		if holes[h].first > holes[h].last {
			h++
		}
		if sources[s].first > sources[s].last {
			s++
		}
	}
	return cmds
}

// Erase removes the points with the given indices. Erased points are replaced by points from the
// back of the cloud so the order of the remaining points is not preserved. Capacity is kept; call
// ShrinkToFit to release it. It returns false without changing anything if an index is out of
// range.
func (pc *PointCloud) Erase(indices []int) bool {
	_, ok := pc.erase(indices, false)
	return ok
}

// EraseMapped is Erase that also returns the mapping from every original index to its new index,
// or -1 for erased points.
func (pc *PointCloud) EraseMapped(indices []int) ([]int, bool) {
	return pc.erase(indices, true)
}

// EraseIf removes every point for which the predicate returns true. The normal passed to the
// predicate is the zero vector when the cloud has no normals.
func (pc *PointCloud) EraseIf(pred func(position, normal r3.Vector) bool) bool {
	_, ok := pc.erase(pc.selectIndices(pred), false)
	return ok
}

// EraseIfMapped is EraseIf that also returns the index mapping, see EraseMapped.
func (pc *PointCloud) EraseIfMapped(pred func(position, normal r3.Vector) bool) ([]int, bool) {
	return pc.erase(pc.selectIndices(pred), true)
}

// TruncateSize removes the last delta points. It returns false if delta exceeds the size.
func (pc *PointCloud) TruncateSize(delta int) bool {
	if delta < 0 || delta > pc.size {
		return false
	}
	tail := make([]int, delta)
	for i := range tail {
		tail[i] = pc.size - delta + i
	}
	_, ok := pc.erase(tail, false)
	return ok
}

func (pc *PointCloud) selectIndices(pred func(position, normal r3.Vector) bool) []int {
	positions := pc.Positions()
	normals := pc.Normals()
	var indices []int
	for i, p := range positions {
		var n r3.Vector
		if normals != nil {
			n = normals[i]
		}
		if pred(p, n) {
			indices = append(indices, i)
		}
	}
	return indices
}

func (pc *PointCloud) erase(indices []int, wantMap bool) ([]int, bool) {
	erased := slices.Clone(indices)
	slices.Sort(erased)
	erased = slices.Compact(erased)
	if len(erased) > 0 && (erased[0] < 0 || erased[len(erased)-1] >= pc.size) {
		return nil, false
	}

	oldSize := pc.size
	newSize := oldSize - len(erased)
	cmds := eraseCopyCommands(erased, oldSize)
	pc.executeCopyCommands(cmds)
	if len(erased) > 0 {
		for _, p := range pc.properties {
			p.col.resize(newSize)
		}
		pc.size = newSize
		pc.generation++
		if pc.observer != nil {
			pc.observer.compacted(cmds, erased, newSize)
		}
	}

	if !wantMap {
		return nil, true
	}
	return replacementMap(oldSize, erased, cmds), true
}

func (pc *PointCloud) executeCopyCommands(cmds []CopyCommand) {
	for _, p := range pc.properties {
		for _, cmd := range cmds {
			p.col.move(cmd.Source, cmd.Target, cmd.Length)
		}
	}
}

// replacementMap maps each original index to its index after the erase, -1 when erased.
func replacementMap(oldSize int, erased []int, cmds []CopyCommand) []int {
	m := make([]int, oldSize)
	for i := range m {
		m[i] = i
	}
	for _, idx := range erased {
		m[idx] = -1
	}
	for _, cmd := range cmds {
		for k := 0; k < cmd.Length; k++ {
			m[cmd.Source+k] = cmd.Target + k
		}
	}
	return m
}
