// internal/workers/leads/run-enrichment-job/config.go
package runenrichmentjob

import "time"

type Config struct {
	// Timeout bounds a whole file; the engine-side job timeout must be larger.
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Minute,
	}
}
