// internal/workers/notification/send-recommendation-digest/config.go
package sendrecommendationdigest

import "time"

type Config struct {
	Timeout      time.Duration
	FromEmail    string
	EmailEnabled bool
	SMSEnabled   bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		EmailEnabled: true,
	}
}
