// Package taste builds weighted taste profiles from embedded watch histories.
package taste

import (
	"math"
	"time"
)

// RatingWeight maps a 1-10 rating onto [0.15, 1.0] with a gentle curve so a
// top rating counts roughly six times a bottom one, not ten.
//
// Exact values:
//
//	1:  0.15
//	2:  0.16
//	3:  0.19
//	4:  0.24
//	5:  0.32
//	6:  0.43
//	7:  0.58
//	8:  0.75
//	9:  0.91
//	10: 1.0
func RatingWeight(rating float64) float64 {
	return 0.15 + 0.85*math.Pow((rating-1)/9, 1.5)
}

// RecencyWeight discounts movies by the year they were watched. Anything from
// 2020 on counts fully; older viewings fall off in two linear segments and
// bottom out at 0.3 before 1975.
func RecencyWeight(watchedAt time.Time) float64 {
	year := watchedAt.Year()
	switch {
	case year >= 2020:
		return 1.0
	case year >= 1990:
		// Linear: 1990 → 0.85, 2020 → 1.0
		return 0.85 + 0.15*(float64(year-1990)/30)
	case year >= 1975:
		// Linear: 1975 → 0.3, 1990 → 0.85
		return 0.3 + 0.55*(float64(year-1975)/15)
	default:
		return 0.3
	}
}

// Weight is the combined influence of one watched movie on its cluster
// centroid: rating weight times recency weight.
func Weight(rating float64, watchedAt time.Time) float64 {
	return RatingWeight(rating) * RecencyWeight(watchedAt)
}
