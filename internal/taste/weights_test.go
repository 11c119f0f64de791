package taste

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRatingWeight(t *testing.T) {
	tests := []struct {
		name     string
		rating   float64
		expected float64
	}{
		{"bottom rating", 1, 0.15},
		{"top rating", 10, 1.0},
		{"midpoint rating", 5.5, 0.15 + 0.85*0.35355339059327373}, // ((4.5/9))^1.5
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RatingWeight(tt.rating), 1e-9)
		})
	}
}

func TestRatingWeight_Monotonic(t *testing.T) {
	prev := RatingWeight(1)
	for r := 2.0; r <= 10; r++ {
		w := RatingWeight(r)
		assert.Greater(t, w, prev, "weight must increase with rating %v", r)
		prev = w
	}
}

func TestRecencyWeight(t *testing.T) {
	tests := []struct {
		name     string
		year     int
		expected float64
	}{
		{"current era", 2024, 1.0},
		{"era boundary 2020", 2020, 1.0},
		{"just before 2020", 2019, 0.85 + 0.15*(29.0/30.0)},
		{"segment start 1990", 1990, 0.85},
		{"mid older segment", 1982, 0.3 + 0.55*(7.0/15.0)},
		{"segment start 1975", 1975, 0.3},
		{"pre-1975 floor", 1960, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			watched := time.Date(tt.year, 6, 15, 0, 0, 0, 0, time.UTC)
			assert.InDelta(t, tt.expected, RecencyWeight(watched), 1e-9)
		})
	}
}

func TestWeight_Combines(t *testing.T) {
	watched := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, RatingWeight(8), Weight(8, watched), 1e-9)

	old := time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, RatingWeight(8)*0.3, Weight(8, old), 1e-9)
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		expected Strategy
	}{
		{"tiny history", 6, StrategySingle},
		{"just below small limit", 99, StrategySingle},
		{"at small limit", 100, StrategyKMeans},
		{"at large limit", 500, StrategyKMeans},
		{"above large limit", 501, StrategyDensity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SelectStrategy(tt.n, 100, 500))
		})
	}
}
