// internal/workers/recommendation/score-candidates/config.go
package scorecandidates

import "time"

type Config struct {
	Timeout      time.Duration
	SoftmaxAlpha float64
	TopN         int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      60 * time.Second,
		SoftmaxAlpha: 5.0,
		TopN:         10,
	}
}
