//go:build arm64

package services

import "github.com/viant/vec/search"

// vecCosineDistanceWithMagnitude forwards to viant/vec, whose exported name
// for this method differs between arm64 and other architectures.
func vecCosineDistanceWithMagnitude(v search.Float32s, vec []float32, m1, m2 float32) float32 {
	return v.CosineDistanceWithMagnitude(vec, m1, m2)
}
