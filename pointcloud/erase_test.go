package pointcloud

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestIndicesToChunks(t *testing.T) {
	test.That(t, indicesToChunks(nil), test.ShouldBeNil)
	test.That(t, indicesToChunks([]int{1, 2, 3, 7, 9, 10}), test.ShouldResemble,
		[]chunk{{first: 1, last: 3}, {first: 7, last: 7}, {first: 9, last: 10}})
}

func TestEraseCopyCommands(t *testing.T) {
	t.Run("tail erase needs no copies", func(t *testing.T) {
		test.That(t, eraseCopyCommands([]int{8, 9}, 10), test.ShouldBeNil)
	})
	t.Run("holes filled from tail runs", func(t *testing.T) {
		// size 10, erase 1,2 and 8: survivors 7 and 9 fill the holes
		cmds := eraseCopyCommands([]int{1, 2, 8}, 10)
		test.That(t, cmds, test.ShouldResemble, []CopyCommand{
			{Source: 7, Target: 1, Length: 1},
			{Source: 9, Target: 2, Length: 1},
		})
	})
	t.Run("contiguous runs move in one command", func(t *testing.T) {
		cmds := eraseCopyCommands([]int{0, 1, 2}, 6)
		test.That(t, cmds, test.ShouldResemble, []CopyCommand{{Source: 3, Target: 0, Length: 3}})
	})
}

func TestEraseScenario(t *testing.T) {
	pc := NewFromPositions([]r3.Vector{{X: 0}, {X: 1}, {X: 2}})
	original := slices.Clone(pc.Positions())

	replacement, ok := pc.EraseMapped([]int{1})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	test.That(t, pc.Positions()[1], test.ShouldResemble, original[2])
	test.That(t, replacement, test.ShouldResemble, []int{0, -1, 1})
	checkSizeInvariant(t, pc)
}

func TestEraseEdgeCases(t *testing.T) {
	t.Run("out of range fails without mutation", func(t *testing.T) {
		pc := MakeTestPointCloud()
		gen := pc.Generation()
		test.That(t, pc.Erase([]int{0, 3}), test.ShouldBeFalse)
		test.That(t, pc.Erase([]int{-1}), test.ShouldBeFalse)
		_, ok := pc.EraseMapped([]int{5})
		test.That(t, ok, test.ShouldBeFalse)
		test.That(t, pc.Size(), test.ShouldEqual, 3)
		test.That(t, pc.Generation(), test.ShouldEqual, gen)
	})

	t.Run("empty erase is identity", func(t *testing.T) {
		pc := MakeTestPointCloud()
		gen := pc.Generation()
		replacement, ok := pc.EraseMapped(nil)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, replacement, test.ShouldResemble, []int{0, 1, 2})
		test.That(t, pc.Generation(), test.ShouldEqual, gen)
	})

	t.Run("duplicates and order are ignored", func(t *testing.T) {
		pc := MakeTestPointCloud()
		test.That(t, pc.Erase([]int{2, 0, 2, 0}), test.ShouldBeTrue)
		test.That(t, pc.Positions(), test.ShouldResemble, []r3.Vector{{X: 1}})
		test.That(t, pc.Intensities(), test.ShouldResemble, []float32{10})
		checkSizeInvariant(t, pc)
	})

	t.Run("erase everything", func(t *testing.T) {
		pc := MakeTestPointCloud()
		capacity := pc.Capacity()
		replacement, ok := pc.EraseMapped([]int{0, 1, 2})
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, pc.Size(), test.ShouldEqual, 0)
		test.That(t, pc.Capacity(), test.ShouldEqual, capacity)
		test.That(t, replacement, test.ShouldResemble, []int{-1, -1, -1})
	})

	t.Run("truncate", func(t *testing.T) {
		pc := MakeTestPointCloud()
		test.That(t, pc.TruncateSize(4), test.ShouldBeFalse)
		test.That(t, pc.TruncateSize(2), test.ShouldBeTrue)
		test.That(t, pc.Positions(), test.ShouldResemble, []r3.Vector{{}})
		checkSizeInvariant(t, pc)
	})

	t.Run("raw properties follow", func(t *testing.T) {
		pc := MakeTestPointCloud()
		pc.AddRawProperty("TAG", 2)
		copy(Data[byte](pc, "TAG"), []byte{0, 0, 1, 1, 2, 2})
		test.That(t, pc.Erase([]int{0}), test.ShouldBeTrue)
		test.That(t, Data[byte](pc, "TAG"), test.ShouldResemble, []byte{2, 2, 1, 1})
	})
}

func TestEraseIf(t *testing.T) {
	pc := MakeTestPointCloud()
	pc.Normals()[1] = r3.Vector{X: 1}
	replacement, ok := pc.EraseIfMapped(func(_, normal r3.Vector) bool {
		return normal.X == 1
	})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, replacement, test.ShouldResemble, []int{0, -1, 1})
	test.That(t, pc.Positions(), test.ShouldResemble, []r3.Vector{{}, {Y: 1}})

	noNormals := NewFromPositions([]r3.Vector{{X: 1}, {X: -1}})
	test.That(t, noNormals.EraseIf(func(p, n r3.Vector) bool {
		return n == (r3.Vector{}) && p.X < 0
	}), test.ShouldBeTrue)
	test.That(t, noNormals.Positions(), test.ShouldResemble, []r3.Vector{{X: 1}})
}

// TestEraseRandom checks that the surviving points are exactly the points not erased and that the
// replacement map is consistent with the data, using intensities as original indices.
func TestEraseRandom(t *testing.T) {
	//nolint:gosec
	r := rand.New(rand.NewSource(7))
	for iter := 0; iter < 50; iter++ {
		size := r.Intn(200)
		pc := MakeRandomPointCloud(size, 10, int64(iter))
		original := slices.Clone(pc.Positions())

		var erase []int
		for i := 0; i < size; i++ {
			if r.Float64() < 0.3 {
				erase = append(erase, i)
			}
		}
		r.Shuffle(len(erase), func(i, j int) { erase[i], erase[j] = erase[j], erase[i] })

		replacement, ok := pc.EraseMapped(erase)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, pc.Size(), test.ShouldEqual, size-len(erase))
		checkSizeInvariant(t, pc)
		test.That(t, len(replacement), test.ShouldEqual, size)

		erased := map[int]bool{}
		for _, idx := range erase {
			erased[idx] = true
		}
		seen := map[int]bool{}
		for newIdx, intensity := range pc.Intensities() {
			oldIdx := int(intensity)
			test.That(t, erased[oldIdx], test.ShouldBeFalse)
			test.That(t, seen[oldIdx], test.ShouldBeFalse)
			seen[oldIdx] = true
			test.That(t, pc.Positions()[newIdx], test.ShouldResemble, original[oldIdx])
			test.That(t, replacement[oldIdx], test.ShouldEqual, newIdx)
		}
		for oldIdx := range erased {
			test.That(t, replacement[oldIdx], test.ShouldEqual, -1)
		}
	}
}
