package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]byte("level: 6\ncodec: zstd\nshuffle: true\nworkers: 2\nlog_level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, &Config{Level: 6, Codec: "zstd", Shuffle: true, Workers: 2, LogLevel: "debug"}, cfg)
	l, err := cfg.logLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	cfg, err = parseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	for _, bad := range []string{
		"level: 12\n",
		"codec: brotli\n",
		"workers: -1\n",
		"log_level: loud\n",
		"compression: 3\n",
		"level: [1]\n",
	} {
		_, err := parseConfig([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "h5ctl.yaml")
	require.NoError(t, os.WriteFile(p, []byte("codec: lz4\n"), 0o600))
	cfg, err := loadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "lz4", cfg.Codec)
	assert.Equal(t, -1, cfg.Level)

	_, err = loadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err, "an explicit path must exist")

	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	cfg, err = loadConfig("")
	require.NoError(t, err)
	if filepath.Dir(mustDefaultPath(t)) == dir {
		assert.Equal(t, "lz4", cfg.Codec, "default location")
	}
}

func mustDefaultPath(t *testing.T) string {
	t.Helper()
	p, err := defaultConfigPath()
	require.NoError(t, err)
	return p
}
