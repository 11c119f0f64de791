// internal/workers/catalog/sync-movie-catalog/config.go
package syncmoviecatalog

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// A full discover+details pass over the configured pages is slow.
		Timeout: 5 * time.Minute,
	}
}
