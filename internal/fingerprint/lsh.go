package fingerprint

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/templateguard/simengine/pkg/models"
)

// BandRows splits a sketch's MinHash vector into b contiguous bands of r
// rows each and hashes each band down to a single uint64. Two sketches sharing a band hash in the same band index are
// LSH candidates — they agree on every one of that band's r rows.
//
// bands*rowsPerBand must equal the sketch's dimension; this is enforced at
// config load time (internal/config.Config.Validate), not here, so a
// mismatch here is a programmer error rather than a runtime condition to
// recover from.
func BandRows(s models.Sketch, bands, rowsPerBand int, ownerID string) []models.BandRow {
	if s.IsEmpty() {
		return nil
	}

	rows := make([]models.BandRow, 0, bands)
	buf := make([]byte, 8*rowsPerBand)
	for b := 0; b < bands; b++ {
		start := b * rowsPerBand
		for r := 0; r < rowsPerBand; r++ {
			binary.LittleEndian.PutUint64(buf[r*8:r*8+8], s.Values[start+r])
		}
		rows = append(rows, models.BandRow{
			BandIndex: b,
			BandHash:  xxhash.Sum64(buf),
			OwnerID:   ownerID,
		})
	}
	return rows
}

// candidateProbability is the classic LSH S-curve: the probability that two
// sketches with true Jaccard similarity j share at least one band, given b
// bands of r rows each. It describes the engine's effective
// recall/precision tradeoff; only this package's tests call it, and it is
// not used on the hot path.
func candidateProbability(jaccard float64, bands, rowsPerBand int) float64 {
	perBand := pow(jaccard, float64(rowsPerBand))
	return 1 - pow(1-perBand, float64(bands))
}

func pow(base float64, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	result := 1.0
	// exp here is always a small non-negative integer (rowsPerBand or
	// bands), so plain repeated multiplication avoids pulling in math.Pow
	// for a single call site.
	n := int(exp)
	for i := 0; i < n; i++ {
		result *= base
	}
	return result
}
