package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/bft-labs/postbus/internal/app"
	"github.com/bft-labs/postbus/internal/cliconfig"
	"github.com/bft-labs/postbus/pkg/log"
	redistransport "github.com/bft-labs/postbus/pkg/transport/redis"
	"github.com/bft-labs/postbus/pkg/transport/ws"
)

// Hello is published on the control channel once connected.
type Hello struct {
	Node string `json:"node"`
	Dir  string `json:"dir"`
}

func newWatchCmd(cfg *cliconfig.Config, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Stream directory change events to a peer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.WatchDir = args[0]
			}
			zl, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.WatchDir == "" {
				return fmt.Errorf("dir is required")
			}
			logger := log.NewZerologAdapterWithLogger(zl)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			node := app.NewNode(app.NodeConfig{Channels: cfg.Channels, Logger: logger})
			cleanup, err := bind(ctx, node, *cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := node.Publish(cliconfig.ChannelControl, Hello{Node: node.ID(), Dir: cfg.WatchDir}); err != nil {
				logger.Warn("hello not sent", log.Err(err))
			}

			watcher := app.NewDirWatcher(cfg.WatchDir, cliconfig.ChannelFSEvents, node, log.WithComponent(logger, "watcher"))
			watchCtx, cancelWatch := context.WithCancel(ctx)
			defer cancelWatch()
			watchErr := make(chan error, 1)
			go func() { watchErr <- watcher.Run(watchCtx) }()

			err = runNode(ctx, node, logger)
			cancelWatch()
			if werr := <-watchErr; werr != nil && !errors.Is(werr, context.Canceled) {
				logger.Error("watcher stopped", log.Err(werr))
			}
			return err
		},
	}
}

// bind connects node to its peer over the configured transport.
func bind(ctx context.Context, node *app.Node, cfg cliconfig.Config, logger log.Logger) (func(), error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if cfg.Transport == cliconfig.TransportRedis {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DialTimeout: cfg.ConnectTimeout})
		if err := client.Ping(dialCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		send, recv := redistransport.Topics(cfg.RedisPrefix, false)
		port := redistransport.New(client, send, recv, node.Loop(), redistransport.WithLogger(logger))
		if err := node.Bind(port, port, port.Listen); err != nil {
			_ = client.Close()
			return nil, err
		}
		return func() {
			_ = port.Close()
			_ = client.Close()
		}, nil
	}

	port, err := ws.Dial(dialCtx, cfg.URL, node.Loop(), ws.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := node.Bind(port, port, port.Serve); err != nil {
		_ = port.Close()
		return nil, err
	}
	return func() { _ = port.Close() }, nil
}
