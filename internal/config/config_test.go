package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/wax.db")
	t.Setenv("WORKERS", "8")
	t.Setenv("EXTRACT_MIN_FIELDS", "3")
	t.Setenv("SHEETS_RATE_LIMIT_RPS", "0.5")
	t.Setenv("IMAP_SECURE", "off")
	t.Setenv("OCR_TIMEOUT_MS", "1500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/wax.db", cfg.DBPath)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 3, cfg.ExtractMinFields)
	assert.Equal(t, 0.5, cfg.SheetsRateLimitRPS)
	assert.False(t, cfg.IMAPSecure)
	assert.Equal(t, 1500*time.Millisecond, cfg.OCRTimeout())
}

func TestLoadFallsBackOnGarbage(t *testing.T) {
	t.Setenv("WORKERS", "many")
	t.Setenv("IMAP_MARK_SEEN", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.False(t, cfg.IMAPMarkSeen)
}

func TestRequire(t *testing.T) {
	var cfg Config
	assert.Error(t, cfg.Require("IMAP_HOST", "  "))
	assert.NoError(t, cfg.Require("IMAP_HOST", "imap.example.com"))
}
