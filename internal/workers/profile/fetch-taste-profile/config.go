// internal/workers/profile/fetch-taste-profile/config.go
package fetchtasteprofile

import "time"

type Config struct {
	Timeout            time.Duration
	DemoProfileEnabled bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
