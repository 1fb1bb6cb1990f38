package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bft-labs/postbus/internal/app"
	"github.com/bft-labs/postbus/internal/cliconfig"
	"github.com/bft-labs/postbus/pkg/log"
	redistransport "github.com/bft-labs/postbus/pkg/transport/redis"
	"github.com/bft-labs/postbus/pkg/transport/ws"
)

type configLoader func(cmd *cobra.Command) (zerolog.Logger, error)

func newServeCmd(cfg *cliconfig.Config, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept peers and log every message they send",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			zl, err := load(cmd)
			if err != nil {
				return err
			}
			logger := log.NewZerologAdapterWithLogger(zl)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Transport == cliconfig.TransportRedis {
				return serveRedis(ctx, *cfg, logger)
			}
			return serveWS(ctx, *cfg, logger)
		},
	}
}

// logIncoming logs every message received on the node's channels.
func logIncoming(node *app.Node, channels []app.ChannelSpec, logger log.Logger) error {
	for _, ch := range channels {
		name := ch.Name
		if _, err := node.Subscribe(name, func(msg any) {
			logger.Info("message", log.Channel(name), log.Any("message", msg))
		}); err != nil {
			return err
		}
	}
	return nil
}

func serveWS(ctx context.Context, cfg cliconfig.Config, logger log.Logger) error {
	onConnect := func(p *ws.Port) {
		node := app.NewNode(app.NodeConfig{Channels: cfg.Channels, Logger: logger})
		p.SetExecutor(node.Loop())
		if err := node.Bind(p, p, nil); err != nil {
			logger.Error("bind peer", log.Err(err))
			_ = p.Close()
			return
		}
		if err := logIncoming(node, cfg.Channels, logger); err != nil {
			logger.Error("subscribe peer", log.Err(err))
			_ = p.Close()
			return
		}
		if err := node.Start(ctx); err != nil {
			logger.Error("start peer", log.Err(err))
			_ = p.Close()
			return
		}
		go func() {
			<-p.Done()
			if err := node.Stop(); err != nil {
				logger.Warn("stop peer", log.String("node", node.ID()), log.Err(err))
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, ws.NewHandler(nil, onConnect, ws.WithLogger(logger)))
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ConnectTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("listening", log.String("addr", cfg.Listen), log.String("path", cfg.Path))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		logger.Info("received signal, stopping...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveRedis(ctx context.Context, cfg cliconfig.Config, logger log.Logger) error {
	client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DialTimeout: cfg.ConnectTimeout})
	defer client.Close()

	node := app.NewNode(app.NodeConfig{Channels: cfg.Channels, Logger: logger})
	send, recv := redistransport.Topics(cfg.RedisPrefix, true)
	port := redistransport.New(client, send, recv, node.Loop(), redistransport.WithLogger(logger))
	defer port.Close()

	if err := node.Bind(port, port, port.Listen); err != nil {
		return err
	}
	if err := logIncoming(node, cfg.Channels, logger); err != nil {
		return err
	}
	return runNode(ctx, node, logger)
}

// runNode starts node and stops it when ctx is done or the node crashes.
func runNode(ctx context.Context, node *app.Node, logger log.Logger) error {
	if err := node.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	crashed := false
wait:
	for {
		select {
		case <-ctx.Done():
			logger.Info("received signal, stopping...")
			break wait
		case <-ticker.C:
			if node.Status() == app.StateCrashed {
				crashed = true
				break wait
			}
		}
	}

	if err := node.Stop(); err != nil {
		return fmt.Errorf("stop node: %w", err)
	}
	if crashed {
		return errors.New("transport failed")
	}
	return nil
}
