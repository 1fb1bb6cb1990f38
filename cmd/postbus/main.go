package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/postbus/internal/cliconfig"
)

const helpDescription = `
Carry many named message channels over one connection.

Highlights:
  - Batched channels coalesce everything published in one loop turn into a
    single transport write.
  - Immediate channels send each message as soon as it is published.
  - Runs over WebSocket or Redis pub/sub; configure via file, env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  postbus serve --listen :7070
  postbus watch ./data --url ws://localhost:7070/bus
  postbus serve --transport redis --redis-addr localhost:6379
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var channels string

	root := &cobra.Command{
		Use:           "postbus",
		Short:         "Multiplex named message channels over one connection",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// loadConfig resolves flag > env > file > default for the running command.
	loadConfig := func(cmd *cobra.Command) (zerolog.Logger, error) {
		cfgFile := cfgPath
		if cfgFile == "" {
			cfgFile = cliconfig.DefaultConfigPath()
		}

		changed := map[string]bool{}
		cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

		if changed["channels"] {
			chs, err := cliconfig.ParseChannels(channels)
			if err != nil {
				return zerolog.Nop(), fmt.Errorf("parse channels: %w", err)
			}
			cfg.Channels = chs
		}

		if cfgFile != "" && cliconfig.FileExists(cfgFile) {
			fc, err := cliconfig.LoadFileConfig(cfgFile)
			if err != nil {
				return zerolog.Nop(), fmt.Errorf("load config: %w", err)
			}
			if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
				return zerolog.Nop(), err
			}
		}

		// Environment overrides the file; flags override both.
		if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
			return zerolog.Nop(), err
		}

		if err := cfg.Validate(); err != nil {
			return zerolog.Nop(), err
		}

		logger, err := cliconfig.Logger(cfg.LogLevel)
		if err != nil {
			return zerolog.Nop(), err
		}
		logger.Info().Interface("config", cfg).Msg("configuration")
		return logger, nil
	}

	root.AddCommand(newServeCmd(&cfg, loadConfig), newWatchCmd(&cfg, loadConfig))

	// Flags
	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.postbus/config.toml)")
	pf.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport: ws or redis")
	pf.StringVar(&cfg.Listen, "listen", cfg.Listen, "address the ws server listens on")
	pf.StringVar(&cfg.URL, "url", cfg.URL, "ws URL to dial (defaults to listen address and path)")
	pf.StringVar(&cfg.Path, "path", cfg.Path, "HTTP path of the ws endpoint")
	pf.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address")
	pf.StringVar(&cfg.RedisPrefix, "redis-prefix", cfg.RedisPrefix, "Redis topic prefix shared by both sides")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pf.StringVar(&channels, "channels", "", `channel list, e.g. "fs.events:batched,control:immediate"`)
	pf.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "timeout for connecting to the peer")

	if err := root.Execute(); err != nil {
		logger, _ := cliconfig.Logger("")
		logger.Error().Err(err).Msg("postbus")
		os.Exit(1)
	}
}
