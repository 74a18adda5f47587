package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, DatabaseTypeMongoDB, cfg.StoreType())
	assert.Equal(t, 30*time.Second, cfg.External.Timeout)
	assert.Equal(t, int64(10_000_000), cfg.Limits.JSONBytes)
	assert.Equal(t, int64(50_000_000), cfg.Limits.FileUploadBytes)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins())
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8080
database:
  type: mysql
  hostname: db.internal
  database: consents
external:
  base_url: http://upstream.example
  timeout: 5s
limits:
  file_upload: 2mb
`)

	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", " http://a.example , ,http://b.example")
	t.Setenv("EXTERNAL_API_MASTER_PASSWORD", "secret")
	t.Setenv("JSON_LIMIT", "1kb")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DatabaseTypeMySQL, cfg.StoreType())
	assert.Equal(t, "db.internal", cfg.Database.Hostname)
	assert.Equal(t, "http://upstream.example", cfg.External.BaseURL)
	assert.Equal(t, "secret", cfg.External.MasterPassword)
	assert.Equal(t, 5*time.Second, cfg.External.Timeout)
	assert.Equal(t, int64(1000), cfg.Limits.JSONBytes)
	assert.Equal(t, int64(2_000_000), cfg.Limits.FileUploadBytes)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORS.AllowedOrigins())
	assert.False(t, cfg.CORS.AllowsAnyOrigin())
	assert.Equal(t, 3306, cfg.Database.Port)
}

func TestLoad_EmulatorSelectsMemoryStore(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("USE_EMULATOR", "true")
	t.Setenv("DATABASE_TYPE", "mysql")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DatabaseTypeMemory, cfg.StoreType())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"invalid port", map[string]string{"PORT": "70000"}},
		{"unknown store", map[string]string{"DATABASE_TYPE": "firestore"}},
		{"bad size", map[string]string{"FILE_UPLOAD_LIMIT": "lots"}},
		{"zero size", map[string]string{"JSON_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load("")
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}

	t.Run("explicit file missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
