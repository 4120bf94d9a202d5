package store

import (
	"reflect"
	"testing"

	"github.com/templateguard/simengine/pkg/models"
)

func TestEncodeDecodeValuesRoundTrip(t *testing.T) {
	values := []uint64{1, 2, 3, 18446744073709551615, 0}
	encoded := encodeValues(values)
	decoded, err := decodeValues(encoded, len(values))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(values, decoded) {
		t.Fatalf("round trip mismatch: got %v, want %v", decoded, values)
	}
}

func TestDecodeValuesLengthMismatch(t *testing.T) {
	_, err := decodeValues([]byte{1, 2, 3}, 128)
	if err == nil {
		t.Fatal("expected error for mismatched blob length")
	}
}

func TestDecodeSketchRoundTrip(t *testing.T) {
	values := make([]uint64, 128)
	for i := range values {
		values[i] = uint64(i * 7)
	}
	encoded := encodeValues(values)

	sketch, err := decodeSketch(encoded, 128, models.VariantHTML, 900, models.FormatVersion, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sketch.Dimension != 128 || sketch.Variant != models.VariantHTML || sketch.ShingleCount != 900 {
		t.Fatalf("unexpected decoded sketch: %+v", sketch)
	}
	if !reflect.DeepEqual(sketch.Values, values) {
		t.Fatal("decoded values do not match original")
	}
}
