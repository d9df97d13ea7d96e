// internal/workers/leads/enrich-company/config.go
package enrichcompany

import "time"

type Config struct {
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 20 * time.Second,
	}
}
