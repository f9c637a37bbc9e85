//go:build fastmath

package dbconv

import (
	"math"

	approx "github.com/meko-christian/algo-approx"
)

// ln10 is the natural logarithm of 10, used to convert between natural and
// base-10 logarithms without a second approximation table.
const ln10 = 2.302585092994045684017991454684

// LinearToDB converts a linear amplitude ratio to decibels using the
// approximate natural log, matching the precision budget of the fastmath
// build used on the real-time gain-ramp and analyzer hot paths.
func LinearToDB(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return 20 * (approx.FastLog(linear) / ln10)
}

// DBToLinear converts decibels to a linear amplitude ratio via the identity
// 10^x = e^(x*ln10).
func DBToLinear(db float64) float64 {
	return approx.FastExp(db / 20 * ln10)
}
