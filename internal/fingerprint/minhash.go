package fingerprint

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/templateguard/simengine/pkg/models"
)

// MinHasher computes a fixed-dimension MinHash vector using N independent
// seeded xxhash permutations rather than N independent hash functions,
// which is the standard trick for getting many "hash functions" out of one
// fast non-cryptographic hash.
type MinHasher struct {
	dimension int
	seeds     []uint64
}

// NewMinHasher builds a hasher for the given dimension. Seeds are derived
// deterministically from the dimension index so that two processes with the
// same config always produce comparable sketches without sharing random
// state.
func NewMinHasher(dimension int) *MinHasher {
	seeds := make([]uint64, dimension)
	for i := range seeds {
		seeds[i] = splitmix64(uint64(i) + 0x9E3779B97F4A7C15)
	}
	return &MinHasher{dimension: dimension, seeds: seeds}
}

// splitmix64 is a cheap, well-distributed constant generator; it is not
// used as a hash over input data, only to derive the N permutation seeds.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// Sketch computes the MinHash vector over set, tagging the result with
// variant and the pattern table version active when shingling ran. An
// empty set produces the all-sentinel EmptySketch.
func (m *MinHasher) Sketch(set ShingleSet, variant models.Variant, patternTableVersion int) models.Sketch {
	if len(set) == 0 {
		s := models.EmptySketch(m.dimension, variant)
		s.PatternTableVer = patternTableVersion
		return s
	}

	values := make([]uint64, m.dimension)
	for i := range values {
		values[i] = ^uint64(0)
	}

	var buf [8]byte
	for shingle := range set {
		base := xxhash.Sum64String(shingle)
		for i, seed := range m.seeds {
			binary.LittleEndian.PutUint64(buf[:], base^seed)
			h := xxhash.Sum64(buf[:])
			if h < values[i] {
				values[i] = h
			}
		}
	}

	return models.Sketch{
		Dimension:       m.dimension,
		Variant:         variant,
		Values:          values,
		ShingleCount:    len(set),
		FormatVersion:   models.FormatVersion,
		PatternTableVer: patternTableVersion,
	}
}

// EstimateJaccard returns the fraction of matching slots between two
// sketches of equal dimension and variant, the standard MinHash unbiased
// estimator of Jaccard similarity. Returns
// models.ErrDimensionMismatch if a or b is incomparable to the other.
func EstimateJaccard(a, b models.Sketch) (float64, error) {
	if a.Dimension != b.Dimension || a.Variant != b.Variant {
		return 0, models.ErrDimensionMismatch
	}
	if a.Dimension == 0 {
		return 0, models.ErrDimensionMismatch
	}
	if a.IsEmpty() || b.IsEmpty() {
		return 0, nil
	}

	matches := 0
	for i := range a.Values {
		if a.Values[i] == b.Values[i] {
			matches++
		}
	}
	return float64(matches) / float64(a.Dimension), nil
}
