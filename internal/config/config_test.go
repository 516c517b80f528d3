package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.SaveDelay.Std())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "erdsync.yaml", `
store:
  driver: postgres
  dsn: postgres://u:p@db/erd
engine:
  saveDelay: 750ms
  readOnly: true
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://u:p@db/erd", cfg.Store.DSN)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.SaveDelay.Std())
	assert.True(t, cfg.Engine.ReadOnly)
	assert.True(t, cfg.Engine.ShowViews, "unset fields keep defaults")
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_CUE(t *testing.T) {
	path := writeFile(t, "erdsync.cue", `
store: {
	driver: "memory"
}
engine: {
	defaultSchema: "public"
	pulseDuration: "1s"
	frameInterval: 33
}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "public", cfg.Engine.DefaultSchema)
	assert.Equal(t, time.Second, cfg.Engine.PulseDuration.Std())
	assert.Equal(t, 33*time.Millisecond, cfg.Engine.FrameInterval.Std())
}

func TestLoad_CUERejectsUnknownDriver(t *testing.T) {
	path := writeFile(t, "erdsync.cue", `store: driver: "oracle"`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_CUERejectsUnknownField(t *testing.T) {
	path := writeFile(t, "erdsync.cue", `engine: frobnicate: true`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unsupported extension", "erdsync.toml", "x = 1"},
		{"bad yaml", "erdsync.yaml", "store: [unterminated"},
		{"sqlite without path", "erdsync.yaml", "store: {driver: sqlite, path: ''}"},
		{"postgres without dsn", "erdsync.yaml", "store: {driver: postgres}"},
		{"bad level", "erdsync.yaml", "log: {level: loud}"},
		{"bad duration", "erdsync.yaml", "engine: {saveDelay: soon}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv("ERDSYNC_STORE_DRIVER", "memory")
	t.Setenv("ERDSYNC_ADDR", ":9999")
	t.Setenv("ERDSYNC_CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("ERDSYNC_READ_ONLY", "true")
	t.Setenv("ERDSYNC_SAVE_DELAY", "250")
	t.Setenv("ERDSYNC_LOG_LEVEL", "warn")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(""))
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowOrigins)
	assert.True(t, cfg.Engine.ReadOnly)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.SaveDelay.Std())
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
}

func TestApplyEnv_DotEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "ERDSYNC_DEFAULT_SCHEMA=sales\nERDSYNC_SHOW_VIEWS=false\n")
	t.Cleanup(func() {
		os.Unsetenv("ERDSYNC_DEFAULT_SCHEMA")
		os.Unsetenv("ERDSYNC_SHOW_VIEWS")
	})

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(path))
	assert.Equal(t, "sales", cfg.Engine.DefaultSchema)
	assert.False(t, cfg.Engine.ShowViews)
}

func TestApplyEnv_MissingFileIgnored(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.ApplyEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	t.Setenv("ERDSYNC_READ_ONLY", "maybe")
	t.Setenv("ERDSYNC_SAVE_DELAY", "later")

	cfg := Default()
	err := cfg.ApplyEnv("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERDSYNC_READ_ONLY")
	assert.Contains(t, err.Error(), "ERDSYNC_SAVE_DELAY")
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"2s"`)))
	assert.Equal(t, 2*time.Second, d.Std())
	require.NoError(t, d.UnmarshalJSON([]byte(`40`)))
	assert.Equal(t, 40*time.Millisecond, d.Std())
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	lvl, err = ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, lvl)
}
