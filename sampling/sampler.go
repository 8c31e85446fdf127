package sampling

import (
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"
)

// Sampler draws distinct uniform samples. It is not safe for concurrent
// use; give every worker its own instance.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a sampler seeded with the given seed.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// NewSamplerFromSource returns a sampler drawing from src.
func NewSamplerFromSource(src rand.Source) *Sampler {
	return &Sampler{rng: rand.New(src)}
}

// SampleDistinct appends exactly min(count, population) distinct indices
// from [0, population) to dst and returns the extended slice, ascending.
//
// Selection uses Floyd's algorithm: one random draw per requested sample and
// no rejection loop, so the worst case is deterministic. The membership set
// is a roaring bitmap, which keeps the draw cheap for both tiny leaves and
// full-dataset passes.
func (s *Sampler) SampleDistinct(dst []int, count, population int) []int {
	if population <= 0 || count <= 0 {
		return dst
	}

	if count >= population {
		for i := range population {
			dst = append(dst, i)
		}

		return dst
	}

	picked := roaring.New()
	for j := population - count; j < population; j++ {
		t := s.rng.Intn(j + 1)
		if !picked.CheckedAdd(uint32(t)) {
			picked.Add(uint32(j))
		}
	}

	it := picked.Iterator()
	for it.HasNext() {
		dst = append(dst, int(it.Next()))
	}

	return dst
}
