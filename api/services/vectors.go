package services

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/viant/vec/search"
)

// EncodeVector packs a vector as little-endian float32 values.
func EncodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	va := search.Float32s(a)
	ma, mb := va.Magnitude(), search.Float32s(b).Magnitude()
	if ma == 0 || mb == 0 {
		return 0.0
	}

	return float64(1 - vecCosineDistanceWithMagnitude(va, b, ma, mb))
}

func normalize(vec []float32) {
	norm := search.Float32s(vec).Magnitude()
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] /= norm
	}
}
