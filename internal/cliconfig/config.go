package cliconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/postbus/internal/app"
)

// Transports understood by the CLI.
const (
	TransportWS    = "ws"
	TransportRedis = "redis"
)

// Default channel names.
const (
	ChannelFSEvents = "fs.events"
	ChannelControl  = "control"
)

// Config holds CLI configuration for postbus.
type Config struct {
	Transport string

	// WebSocket
	Listen string
	URL    string
	Path   string

	// Redis
	RedisAddr   string
	RedisPrefix string

	LogLevel       string
	Channels       []app.ChannelSpec
	ConnectTimeout time.Duration
	WatchDir       string
}

// DefaultChannels returns the channels registered when none are configured.
func DefaultChannels() []app.ChannelSpec {
	return []app.ChannelSpec{
		{Name: ChannelFSEvents, Batched: true},
		{Name: ChannelControl, Batched: false},
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Transport:      TransportWS,
		Listen:         ":7070",
		Path:           "/bus",
		RedisAddr:      "localhost:6379",
		RedisPrefix:    "postbus",
		LogLevel:       "info",
		Channels:       DefaultChannels(),
		ConnectTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
// URL is derived from Listen and Path when empty.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportWS, TransportRedis:
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportWS, TransportRedis)
	}

	if c.Path == "" {
		c.Path = "/"
	}
	if !strings.HasPrefix(c.Path, "/") {
		c.Path = "/" + c.Path
	}

	if c.Transport == TransportWS {
		if c.Listen == "" && c.URL == "" {
			return fmt.Errorf("listen or url is required")
		}
		if c.URL == "" {
			host := c.Listen
			if strings.HasPrefix(host, ":") {
				host = "localhost" + host
			}
			c.URL = "ws://" + host + c.Path
		}
	}

	if c.Transport == TransportRedis {
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-addr is required")
		}
		if c.RedisPrefix == "" {
			return fmt.Errorf("redis-prefix is required")
		}
	}

	if len(c.Channels) == 0 {
		c.Channels = DefaultChannels()
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channel name must not be empty")
		}
		if seen[ch.Name] {
			return fmt.Errorf("channel %q listed twice", ch.Name)
		}
		seen[ch.Name] = true
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}

	return nil
}

// ParseChannels parses "name:batched,name:immediate". A name without a mode
// is batched.
func ParseChannels(s string) ([]app.ChannelSpec, error) {
	var out []app.ChannelSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, mode, _ := strings.Cut(part, ":")
		if name == "" {
			return nil, fmt.Errorf("channel %q: empty name", part)
		}
		batched, err := parseMode(mode)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", name, err)
		}
		out = append(out, app.ChannelSpec{Name: name, Batched: batched})
	}
	return out, nil
}

func parseMode(mode string) (bool, error) {
	switch mode {
	case "", "batched":
		return true, nil
	case "immediate":
		return false, nil
	default:
		return false, fmt.Errorf("unknown mode %q (want batched or immediate)", mode)
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setChannels replaces the channel list if non-empty and flag not changed.
func (s *configSetter) setChannels(flag string, value []app.ChannelSpec, dst *[]app.ChannelSpec) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setChannelsFromString parses a channel list and sets it if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setChannelsFromString(flag, value string, dst *[]app.ChannelSpec) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	chs, err := ParseChannels(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	s.setChannels(flag, chs, dst)
	return nil
}
