//go:build !fastmath

// Package dbconv converts between linear amplitude and decibels. The core
// treats gain uniformly as linear in [0, 1] or [0, inf); dB appears only at
// the FilterConfig.GainDB boundary and at the analyzer's display surface.
package dbconv

import "math"

// LinearToDB converts a linear amplitude ratio to decibels.
// A non-positive input returns math.Inf(-1).
func LinearToDB(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(linear)
}

// DBToLinear converts decibels to a linear amplitude ratio.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
