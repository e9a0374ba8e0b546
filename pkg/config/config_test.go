package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "2.0", cfg.Endpoint.DefaultVersion)
	assert.Equal(t, 10, cfg.Endpoint.MaximumRecords)
	assert.Equal(t, "\x1e", cfg.Backend.FragmentDelimiter)
	assert.Equal(t, 30*time.Second, cfg.Backend.QueryTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.SnapshotInterval)
}

func TestLoadFileKeepsUnsetDefaults(t *testing.T) {
	path := writeConfig(t, `
endpoint:
  defaultVersion: "1.2"
  resources:
    - pid: hdl:1
      titles:
        - lang: en
          text: Corpus
backend:
  table: texts
  queryTimeout: 5s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2", cfg.Endpoint.DefaultVersion)
	assert.Equal(t, 10, cfg.Endpoint.MaximumRecords)
	require.Len(t, cfg.Endpoint.Resources, 1)
	assert.Equal(t, "Corpus", cfg.Endpoint.Resources[0].Titles[0].Text)
	assert.Equal(t, "texts", cfg.Backend.Table)
	assert.Equal(t, 5*time.Second, cfg.Backend.QueryTimeout)
	assert.Equal(t, "simple", cfg.Backend.TextSearchConfig)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FCS_SERVER_PORT", "9999")
	t.Setenv("FCS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FCS_ENDPOINT_DEFAULT_VERSION", "1.1")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "1.1", cfg.Endpoint.DefaultVersion)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"version":      "endpoint:\n  defaultVersion: \"3.0\"\n",
		"maximum":      "endpoint:\n  maximumRecords: 0\n",
		"selectors":    "backend:\n  startSel: \"x\"\n  stopSel: \"x\"\n",
		"resource pid": "endpoint:\n  resources:\n    - titles: []\n",
		"syntax":       "endpoint: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "fcs", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=fcs sslmode=disable", p.DSN())
}
