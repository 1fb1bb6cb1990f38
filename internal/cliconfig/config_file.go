package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/postbus/internal/app"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Transport      string              `toml:"transport"`
	Listen         string              `toml:"listen"`
	URL            string              `toml:"url"`
	Path           string              `toml:"path"`
	RedisAddr      string              `toml:"redis_addr"`
	RedisPrefix    string              `toml:"redis_prefix"`
	LogLevel       string              `toml:"log_level"`
	ConnectTimeout string              `toml:"connect_timeout"`
	WatchDir       string              `toml:"watch_dir"`
	Channels       []FileChannelConfig `toml:"channels"`
}

// FileChannelConfig is one [[channels]] table.
type FileChannelConfig struct {
	Name string `toml:"name"`
	// Mode is "batched" (default) or "immediate".
	Mode string `toml:"mode"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.postbus/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".postbus", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("url", fc.URL, &cfg.URL)
	s.setString("path", fc.Path, &cfg.Path)
	s.setString("redis-addr", fc.RedisAddr, &cfg.RedisAddr)
	s.setString("redis-prefix", fc.RedisPrefix, &cfg.RedisPrefix)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("dir", fc.WatchDir, &cfg.WatchDir)

	if err := s.setDuration("connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}

	chs := make([]app.ChannelSpec, 0, len(fc.Channels))
	for _, c := range fc.Channels {
		batched, err := parseMode(c.Mode)
		if err != nil {
			return fmt.Errorf("channel %q: %w", c.Name, err)
		}
		chs = append(chs, app.ChannelSpec{Name: c.Name, Batched: batched})
	}
	s.setChannels("channels", chs, &cfg.Channels)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
