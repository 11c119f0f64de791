package taste

import "gonum.org/v1/gonum/floats"

// meanSilhouette computes the mean silhouette coefficient over all points.
// For each point, a is the mean distance to its own cluster and b the mean
// distance to the nearest other cluster; the coefficient is (b-a)/max(a,b).
// Points in singleton clusters contribute 0.
func meanSilhouette(vectors [][]float64, labels []int, k int) float64 {
	n := len(vectors)
	if n == 0 || k < 2 {
		return 0
	}

	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}

	var total float64
	sums := make([]float64, k)
	for i := 0; i < n; i++ {
		if sizes[labels[i]] <= 1 {
			continue
		}

		for j := range sums {
			sums[j] = 0
		}
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			sums[labels[j]] += floats.Distance(vectors[i], vectors[j], 2)
		}

		a := sums[labels[i]] / float64(sizes[labels[i]]-1)

		b := -1.0
		for cl := 0; cl < k; cl++ {
			if cl == labels[i] || sizes[cl] == 0 {
				continue
			}
			mean := sums[cl] / float64(sizes[cl])
			if b < 0 || mean < b {
				b = mean
			}
		}
		if b < 0 {
			continue
		}

		max := a
		if b > max {
			max = b
		}
		if max > 0 {
			total += (b - a) / max
		}
	}

	return total / float64(n)
}
