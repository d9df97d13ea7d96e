// internal/workers/leads/suggest-column-mapping/config.go
package suggestcolumnmapping

import (
	"time"

	"leadgen-workers/internal/mapping"
)

type Config struct {
	SampleSize int
	Timeout    time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		SampleSize: mapping.DefaultSampleSize,
		Timeout:    10 * time.Second,
	}
}
