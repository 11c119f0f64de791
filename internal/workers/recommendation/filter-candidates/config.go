// internal/workers/recommendation/filter-candidates/config.go
package filtercandidates

import "time"

type Config struct {
	Timeout          time.Duration
	FuzzyMatchCutoff int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          30 * time.Second,
		FuzzyMatchCutoff: 85,
	}
}
