package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: leads
    user: ${LEADS_TEST_DB_USER}
  redis:
    address: localhost:6379
workers:
  run-enrichment-job:
    enabled: true
    timeout: 600000
  enrich-company:
    enabled: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_ExpandsAndDefaults(t *testing.T) {
	t.Setenv("LEADS_TEST_DB_USER", "leads_app")
	t.Setenv("PAPPERS_API_KEY", "pappers-key")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "leads_app", cfg.Database.Postgres.User)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "pappers-key", cfg.APIs.Pappers.APIKey)
	assert.Equal(t, "https://api.pappers.fr/v2", cfg.APIs.Pappers.BaseURL)
	assert.Equal(t, 100, cfg.Enrichment.SampleSize)
	assert.Equal(t, 10, cfg.Enrichment.ProgressEvery)
	assert.Equal(t, "leads", cfg.Enrichment.IndexName)
	assert.Equal(t, 500, cfg.Enrichment.IndexBatchSize)
	assert.Equal(t, ":8080", cfg.Server.Address)

	wc := GetWorkerConfig(cfg, "run-enrichment-job")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 600000, wc.Timeout)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.Equal(t, 3, wc.MaxRetries)
	assert.Equal(t, 10*time.Minute, GetDuration(wc.Timeout))

	assert.False(t, IsWorkerEnabled(cfg, "enrich-company"))
	assert.True(t, IsWorkerEnabled(cfg, "suggest-column-mapping"))
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "database:\n  postgres:\n    host: h\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "missing redis",
			body: `
camunda:
  broker_address: b
database:
  postgres: {host: h, database: d, user: u}
`,
			wantErr: "database.redis.address is required",
		},
		{
			name: "index enabled without elasticsearch",
			body: `
camunda:
  broker_address: b
database:
  postgres: {host: h, database: d, user: u}
  redis: {address: r}
enrichment:
  index_enabled: true
`,
			wantErr: "database.elasticsearch",
		},
		{
			name: "events enabled without topic",
			body: `
camunda:
  broker_address: b
database:
  postgres: {host: h, database: d, user: u}
  redis: {address: r}
notifications:
  events:
    enabled: true
`,
			wantErr: "topic_arn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestElasticsearchConfig_GetURL(t *testing.T) {
	assert.Equal(t, "http://a:9200", ElasticsearchConfig{Addresses: []string{"http://a:9200"}}.GetURL())
	assert.Equal(t, "http://u:9200", ElasticsearchConfig{URL: "http://u:9200", Addresses: []string{"http://a:9200"}}.GetURL())
	assert.Equal(t, "", ElasticsearchConfig{}.GetURL())
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "leads", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=leads sslmode=disable", p.GetDSN())
}
