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

func TestDefaults(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		check  func(t *testing.T, c *Config)
	}{
		{
			name:   "empty config",
			config: &Config{},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "release", c.ReleaseChannel())
				assert.Equal(t, "Player", c.PlayerName())
				assert.Equal(t, "1G", c.MinMemory())
				assert.Equal(t, "2G", c.MaxMemory())
				assert.Equal(t, 3, c.RetryAttempts())
				assert.Equal(t, 8, c.LibraryConcurrency())
				assert.Equal(t, 16, c.AssetConcurrency())
				assert.Equal(t, 20*time.Second, c.IdleTimeout())
				assert.Equal(t, "java24", c.RuntimeName())
				assert.Equal(t, slog.LevelInfo, c.Level())
				assert.Equal(t, 3, c.CrashUploadRetryAttempts())
			},
		},
		{
			name: "custom values",
			config: &Config{
				Channel:  "snapshot",
				Username: "Steve",
				Memory:   Memory{Min: "2G", Max: "4G"},
				Download: Download{RetryAttempts: 5, LibraryConcurrency: 2, AssetConcurrency: 4, IdleTimeout: "5s"},
				Runtime:  Runtime{Name: "java21", URLs: map[string]string{"linux": "https://x/jre.tar.gz"}},
				LogLevel: "debug",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "snapshot", c.ReleaseChannel())
				assert.Equal(t, "Steve", c.PlayerName())
				assert.Equal(t, "2G", c.MinMemory())
				assert.Equal(t, "4G", c.MaxMemory())
				assert.Equal(t, 5, c.RetryAttempts())
				assert.Equal(t, 2, c.LibraryConcurrency())
				assert.Equal(t, 4, c.AssetConcurrency())
				assert.Equal(t, 5*time.Second, c.IdleTimeout())
				assert.Equal(t, "java21", c.RuntimeName())
				assert.Equal(t, "https://x/jre.tar.gz", c.RuntimeURL("linux"))
				assert.Empty(t, c.RuntimeURL("osx"))
				assert.Equal(t, slog.LevelDebug, c.Level())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.config)
		})
	}
}

func TestValidate(t *testing.T) {
	validConfig := func() *Config {
		return &Config{RootDir: "/tmp/mclaunch"}
	}

	t.Run("valid config", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("empty root_dir", func(t *testing.T) {
		cfg := validConfig()
		cfg.RootDir = ""
		assert.ErrorContains(t, cfg.Validate(), "root_dir is required")
	})

	t.Run("unknown channel", func(t *testing.T) {
		cfg := validConfig()
		cfg.Channel = "beta"
		assert.ErrorContains(t, cfg.Validate(), "channel")
	})

	t.Run("negative window", func(t *testing.T) {
		cfg := validConfig()
		cfg.Window.Width = -1
		assert.ErrorContains(t, cfg.Validate(), "window size")
	})

	t.Run("bad idle timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Download.IdleTimeout = "soon"
		assert.ErrorContains(t, cfg.Validate(), "download.idle_timeout")
	})

	t.Run("extra library without scheme", func(t *testing.T) {
		cfg := validConfig()
		cfg.ExtraLibraries = []string{"https://ok/a.jar", "ftp://nope/b.jar"}
		assert.ErrorContains(t, cfg.Validate(), "extra_libraries[1]")
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.LogLevel = "loud"
		assert.ErrorContains(t, cfg.Validate(), "log_level")
	})

	t.Run("crash upload without bucket", func(t *testing.T) {
		cfg := validConfig()
		cfg.CrashUpload.Enabled = true
		cfg.CrashUpload.Region = "us-east-1"
		assert.ErrorContains(t, cfg.Validate(), "crash_upload.bucket is required")
	})

	t.Run("crash upload without region", func(t *testing.T) {
		cfg := validConfig()
		cfg.CrashUpload.Enabled = true
		cfg.CrashUpload.Bucket = "crashes"
		assert.ErrorContains(t, cfg.Validate(), "crash_upload.region is required")
	})

	t.Run("valid crash upload", func(t *testing.T) {
		cfg := validConfig()
		cfg.CrashUpload.Enabled = true
		cfg.CrashUpload.Bucket = "crashes"
		cfg.CrashUpload.Region = "us-east-1"
		require.NoError(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	data := `
root_dir: /srv/mc
game_dir: /srv/mc/instances/main
channel: snapshot
java:
  min_major: 21
  download: true
memory:
  max: 6G
window:
  width: 1280
  height: 720
jvm_args: -XX:+UseG1GC -Dfoo="a b"
runtime:
  urls:
    linux: https://example.com/jre.tar.gz
download:
  fatal_libraries: true
extra_libraries:
  - https://example.com/repo/x.jar
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/mc", cfg.RootDir)
	assert.Equal(t, "/srv/mc/instances/main", cfg.GameDir)
	assert.Equal(t, 21, cfg.Java.MinMajor)
	assert.True(t, cfg.Java.Download)
	assert.Equal(t, "6G", cfg.MaxMemory())
	assert.Equal(t, 1280, cfg.Window.Width)
	assert.Equal(t, `-XX:+UseG1GC -Dfoo="a b"`, cfg.JVMArgs)
	assert.True(t, cfg.Download.FatalLibraries)
	assert.Equal(t, []string{"https://example.com/repo/x.jar"}, cfg.ExtraLibraries)

	require.NoError(t, os.WriteFile(path, []byte("channel: release\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "config validation failed")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
