// internal/workers/recommendation/score-candidates/scorer.go
package scorecandidates

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// cosine returns the cosine similarity of two equal-length vectors, 0 when
// either has zero magnitude.
func cosine(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// softmaxScore blends the candidate's per-cluster cosine similarities with
// softmax weights of sharpness alpha. Large alpha approaches the best-cluster
// similarity, alpha 0 the plain mean. The exponent is shifted by the maximum
// similarity so exp never overflows.
func softmaxScore(v []float64, centroids [][]float64, alpha float64) float64 {
	sims := make([]float64, len(centroids))
	maxSim := math.Inf(-1)
	for i, c := range centroids {
		sims[i] = cosine(v, c)
		if sims[i] > maxSim {
			maxSim = sims[i]
		}
	}

	var weightSum, score float64
	for _, s := range sims {
		w := math.Exp(alpha * (s - maxSim))
		weightSum += w
		score += w * s
	}
	score /= weightSum

	// Floating-point guard only; similarities live in [-1, 1].
	return math.Min(math.Max(score, 0), 1)
}

// roundScore applies the 2-decimal output rounding.
func roundScore(s float64) float64 {
	return math.Round(s*100) / 100
}
