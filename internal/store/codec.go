package store

import (
	"encoding/binary"
	"fmt"

	"github.com/templateguard/simengine/pkg/models"
)

// encodeValues packs a MinHash vector as big-endian uint64s for BYTEA
// storage. Fixed-width encoding keeps the column size predictable and
// avoids the overhead of a generic serialization format for what is always
// just a slice of integers.
func encodeValues(values []uint64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.BigEndian.PutUint64(buf[i*8:i*8+8], v)
	}
	return buf
}

func decodeValues(raw []byte, dimension int) ([]uint64, error) {
	if len(raw) != dimension*8 {
		return nil, fmt.Errorf("sketch blob length %d does not match dimension %d", len(raw), dimension)
	}
	values := make([]uint64, dimension)
	for i := range values {
		values[i] = binary.BigEndian.Uint64(raw[i*8 : i*8+8])
	}
	return values, nil
}

func decodeSketch(raw []byte, dimension int, variant models.Variant, shingleCount int, formatVersion uint8, patternTableVer int) (models.Sketch, error) {
	values, err := decodeValues(raw, dimension)
	if err != nil {
		return models.Sketch{}, err
	}
	return models.Sketch{
		Dimension:       dimension,
		Variant:         variant,
		Values:          values,
		ShingleCount:    shingleCount,
		FormatVersion:   formatVersion,
		PatternTableVer: patternTableVer,
	}, nil
}
