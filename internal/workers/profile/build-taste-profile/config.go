// internal/workers/profile/build-taste-profile/config.go
package buildtasteprofile

import "time"

type Config struct {
	Timeout          time.Duration
	LockTTL          time.Duration
	HighRatingCutoff float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          120 * time.Second,
		LockTTL:          10 * time.Minute,
		HighRatingCutoff: 4.0,
	}
}
