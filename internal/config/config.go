package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mclaunch/internal/resolve"
)

const DefaultFile = "mclaunch.yaml"

type Java struct {
	Path     string `yaml:"path,omitempty"`
	MinMajor int    `yaml:"min_major,omitempty"`
	Download bool   `yaml:"download"`
}

type Memory struct {
	Min string `yaml:"min,omitempty"`
	Max string `yaml:"max,omitempty"`
}

type Window struct {
	Width      int  `yaml:"width,omitempty"`
	Height     int  `yaml:"height,omitempty"`
	Fullscreen bool `yaml:"fullscreen"`
}

type Endpoints struct {
	Manifest  string `yaml:"manifest,omitempty"`
	Resources string `yaml:"resources,omitempty"`
}

type Runtime struct {
	Name string `yaml:"name,omitempty"`
	// URLs maps a platform name (windows, osx, linux) to a JRE archive.
	URLs map[string]string `yaml:"urls,omitempty"`
}

type Download struct {
	LibraryConcurrency int    `yaml:"library_concurrency,omitempty"`
	AssetConcurrency   int    `yaml:"asset_concurrency,omitempty"`
	RetryAttempts      int    `yaml:"retry_attempts,omitempty"`
	IdleTimeout        string `yaml:"idle_timeout,omitempty"`
	FatalLibraries     bool   `yaml:"fatal_libraries"`
}

type CrashUpload struct {
	Enabled  bool   `yaml:"enabled"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Retry    struct {
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"retry,omitempty"`
}

type Config struct {
	RootDir        string      `yaml:"root_dir"`
	GameDir        string      `yaml:"game_dir,omitempty"`
	Channel        string      `yaml:"channel,omitempty"`
	Username       string      `yaml:"username,omitempty"`
	Java           Java        `yaml:"java"`
	Memory         Memory      `yaml:"memory"`
	Window         Window      `yaml:"window"`
	JVMArgs        string      `yaml:"jvm_args,omitempty"`
	Endpoints      Endpoints   `yaml:"endpoints"`
	Runtime        Runtime     `yaml:"runtime"`
	Download       Download    `yaml:"download"`
	ExtraLibraries []string    `yaml:"extra_libraries,omitempty"`
	LogLevel       string      `yaml:"log_level,omitempty"`
	CrashUpload    CrashUpload `yaml:"crash_upload"`
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("root_dir is required")
	}
	if c.Channel != "" {
		if err := resolve.ValidateChannel(c.Channel); err != nil {
			return fmt.Errorf("channel: %w", err)
		}
	}
	if c.Java.MinMajor < 0 {
		return fmt.Errorf("java.min_major must not be negative")
	}
	if c.Window.Width < 0 || c.Window.Height < 0 {
		return fmt.Errorf("window size must not be negative")
	}
	if c.Download.LibraryConcurrency < 0 || c.Download.AssetConcurrency < 0 {
		return fmt.Errorf("download concurrency must not be negative")
	}
	if c.Download.IdleTimeout != "" {
		if _, err := time.ParseDuration(c.Download.IdleTimeout); err != nil {
			return fmt.Errorf("download.idle_timeout: %w", err)
		}
	}
	for i, u := range c.ExtraLibraries {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("extra_libraries[%d] must be an http(s) url", i)
		}
	}
	if c.LogLevel != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	if c.CrashUpload.Enabled {
		if c.CrashUpload.Bucket == "" {
			return fmt.Errorf("crash_upload.bucket is required when crash_upload is enabled")
		}
		if c.CrashUpload.Region == "" {
			return fmt.Errorf("crash_upload.region is required when crash_upload is enabled")
		}
	}
	return nil
}

func (c *Config) ReleaseChannel() string {
	if c.Channel != "" {
		return c.Channel
	}
	return resolve.Release
}

func (c *Config) PlayerName() string {
	if c.Username != "" {
		return c.Username
	}
	return "Player"
}

func (c *Config) MinMemory() string {
	if c.Memory.Min != "" {
		return c.Memory.Min
	}
	return "1G"
}

func (c *Config) MaxMemory() string {
	if c.Memory.Max != "" {
		return c.Memory.Max
	}
	return "2G"
}

func (c *Config) RetryAttempts() int {
	if c.Download.RetryAttempts > 0 {
		return c.Download.RetryAttempts
	}
	return 3
}

func (c *Config) LibraryConcurrency() int {
	if c.Download.LibraryConcurrency > 0 {
		return c.Download.LibraryConcurrency
	}
	return 8
}

func (c *Config) AssetConcurrency() int {
	if c.Download.AssetConcurrency > 0 {
		return c.Download.AssetConcurrency
	}
	return 16
}

func (c *Config) IdleTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Download.IdleTimeout); err == nil && d > 0 {
		return d
	}
	return 20 * time.Second
}

func (c *Config) RuntimeName() string {
	if c.Runtime.Name != "" {
		return c.Runtime.Name
	}
	return "java24"
}

// RuntimeURL returns the runtime archive configured for platform, or "".
func (c *Config) RuntimeURL(platform string) string {
	return c.Runtime.URLs[platform]
}

func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c *Config) CrashUploadRetryAttempts() int {
	if c.CrashUpload.Retry.MaxAttempts > 0 {
		return c.CrashUpload.Retry.MaxAttempts
	}
	return 3
}
