// internal/workers/leads/create-enrichment-job/config.go
package createenrichmentjob

import "time"

type Config struct {
	// StorageDir, when set, is the only directory uploads may be read from.
	StorageDir string
	Timeout    time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
