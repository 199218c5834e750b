package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.ConfirmationDelay)
	assert.Equal(t, 10, cfg.LivenessWindow)
	assert.Equal(t, 7, cfg.LivenessThreshold)
	assert.True(t, cfg.RecognizerAuth)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "student_mock", cfg.FaceSkipIdentity)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CONFIRMATION_DELAY", "2m")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("RECOGNIZER_AUTH", "false")
	t.Setenv("LIVENESS_THRESHOLD", "5")
	t.Setenv("FACE_SKIP_IDENTITY", "faculty_ada")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.ConfirmationDelay)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.False(t, cfg.RecognizerAuth)
	assert.Equal(t, 5, cfg.LivenessThreshold)
	assert.Equal(t, "faculty_ada", cfg.FaceSkipIdentity)
}

func TestLoad_ConfigFileUnderEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_port: \"7000\"\nlog_format: console\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.HTTPPort)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"threshold above window": {"LIVENESS_WINDOW": "5", "LIVENESS_THRESHOLD": "6"},
		"unknown driver":         {"DB_DRIVER": "mysql"},
		"bad timezone":           {"TIMEZONE": "Mars/Olympus"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("TIMEZONE", "UTC")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
