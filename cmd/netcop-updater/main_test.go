package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netcop-updater/internal/database"
	"netcop-updater/internal/services/tracker"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  version_url: http://localhost:8000/version
  download_url: http://localhost:8000/download
  timeout: 10s
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, tracker.DefaultVersionFile, cfg.Updater.VersionFile)
	assert.Equal(t, 5*time.Minute, cfg.Updater.RunTimeout)
	assert.Equal(t, 10*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing urls", content: "logging:\n  level: debug\n"},
		{name: "unknown field", content: "catalog:\n  version_url: a\n  download_url: b\n  bogus: 1\n"},
		{name: "sqlite without path", content: "database:\n  driver: sqlite\ncatalog:\n  version_url: a\n  download_url: b\n"},
		{name: "redis without host", content: "redis:\n  enabled: true\ncatalog:\n  version_url: a\n  download_url: b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func newCatalogServer(t *testing.T, downloadStatus int) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": "0123456789abcdef"})
	})
	r.GET("/download", func(c *gin.Context) {
		if downloadStatus != http.StatusOK {
			c.Status(downloadStatus)
			return
		}
		c.JSON(http.StatusOK, gin.H{"clases": []gin.H{
			{"id": 10, "nombre": "ssh", "puertos_outside": []string{"22/tcp"}},
		}})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func runConfig(t *testing.T, srv *httptest.Server) (string, string) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "version")
	return writeConfig(t, `
database:
  driver: sqlite
  path: `+filepath.Join(dir, "netcop.db")+`
catalog:
  version_url: `+srv.URL+`/version
  download_url: `+srv.URL+`/download
updater:
  version_file: `+marker+`
  migrate: true
logging:
  level: debug
  format: json
`), marker
}

func TestExecuteRun(t *testing.T) {
	srv := newCatalogServer(t, http.StatusOK)
	path, marker := runConfig(t, srv)

	var stdout, stderr bytes.Buffer
	err := execute([]string{"netcop-updater", "run", "--config", path}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", string(data))
	assert.Contains(t, stderr.String(), "Update successful")
}

func TestExecuteRunFailure(t *testing.T) {
	srv := newCatalogServer(t, http.StatusBadGateway)
	path, marker := runConfig(t, srv)

	var stdout, stderr bytes.Buffer
	err := execute([]string{"netcop-updater", "run", "-c", path}, &stdout, &stderr)
	require.Error(t, err)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr))
	assert.Contains(t, stderr.String(), "Update failed")
}

func TestExecuteMissingConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := execute([]string{"netcop-updater", "run", "--config", filepath.Join(t.TempDir(), "nope.yaml")}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "Failed to load config")
}
