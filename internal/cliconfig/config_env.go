package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (POSTBUS_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("transport", os.Getenv("POSTBUS_TRANSPORT"), &cfg.Transport)
	s.setString("listen", os.Getenv("POSTBUS_LISTEN"), &cfg.Listen)
	s.setString("url", os.Getenv("POSTBUS_URL"), &cfg.URL)
	s.setString("path", os.Getenv("POSTBUS_PATH"), &cfg.Path)
	s.setString("redis-addr", os.Getenv("POSTBUS_REDIS_ADDR"), &cfg.RedisAddr)
	s.setString("redis-prefix", os.Getenv("POSTBUS_REDIS_PREFIX"), &cfg.RedisPrefix)
	s.setString("log-level", os.Getenv("POSTBUS_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("dir", os.Getenv("POSTBUS_WATCH_DIR"), &cfg.WatchDir)

	if err := s.setDuration("connect-timeout", os.Getenv("POSTBUS_CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setChannelsFromString("channels", os.Getenv("POSTBUS_CHANNELS"), &cfg.Channels); err != nil {
		return err
	}

	return nil
}
