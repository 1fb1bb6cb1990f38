// Package ws provides a bus transport over a WebSocket connection.
//
// Each payload travels as one JSON text frame holding the envelope array.
// Use [Dial] on the connecting side and [NewHandler] on the accepting side:
//
//	http.Handle("/bus", ws.NewHandler(loop, func(p *ws.Port) {
//	    b, _ := bus.New(p, p)
//	    ...
//	}))
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bft-labs/postbus/pkg/bus"
	"github.com/bft-labs/postbus/pkg/log"
	"github.com/bft-labs/postbus/pkg/transport"
)

// Option configures a Port or Handler.
type Option func(*options)

type options struct {
	logger    log.Logger
	readLimit int64
}

// WithLogger sets the logger for connection and decode events.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithReadLimit caps the size in bytes of a received frame.
func WithReadLimit(n int64) Option {
	return func(o *options) {
		o.readLimit = n
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Port is a bus transport over one WebSocket connection.
type Port struct {
	conn      *websocket.Conn
	listeners *transport.Listeners
	logger    log.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newPort(conn *websocket.Conn, exec transport.Executor, o options) *Port {
	if o.readLimit > 0 {
		conn.SetReadLimit(o.readLimit)
	}
	return &Port{
		conn:      conn,
		listeners: transport.NewListeners(exec),
		logger:    o.logger,
		done:      make(chan struct{}),
	}
}

// Dial connects to a WebSocket endpoint. Received payloads are delivered to
// listeners through exec once Serve is running.
func Dial(ctx context.Context, url string, exec transport.Executor, opts ...Option) (*Port, error) {
	o := buildOptions(opts)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	o.logger.Info("websocket connected", log.String("url", url))
	return newPort(conn, exec, o), nil
}

// PostMessage writes p as one text frame.
func (p *Port) PostMessage(payload bus.Payload) error {
	frame, err := transport.Encode(payload)
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	select {
	case <-p.done:
		return transport.ErrClosed
	default:
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// AddMessageListener registers fn for every payload received.
func (p *Port) AddMessageListener(fn func(bus.MessageEvent)) {
	p.listeners.Add(fn)
}

// SetExecutor changes where received payloads are delivered. Call it before
// Serve, typically from a Handler's onConnect.
func (p *Port) SetExecutor(exec transport.Executor) {
	p.listeners.SetExecutor(exec)
}

// Serve reads frames until the connection fails, the port is closed or ctx
// is cancelled. Frames that do not decode as a payload are logged and
// skipped. Returns nil after Close and ctx.Err() after cancellation.
func (p *Port) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = p.Close() })
	defer stop()

	for {
		_, frame, err := p.conn.ReadMessage()
		if err != nil {
			select {
			case <-p.done:
				return ctx.Err()
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		payload, err := transport.Decode(frame)
		if err != nil {
			p.logger.Warn("skipping malformed frame", log.Err(err))
			continue
		}
		p.listeners.Dispatch(payload)
	}
}

// Close sends a close frame and closes the connection.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.writeMu.Lock()
		close(p.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = p.conn.WriteMessage(websocket.CloseMessage, msg)
		p.writeMu.Unlock()
		err = p.conn.Close()
	})
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Done is closed when the port is closed.
func (p *Port) Done() <-chan struct{} {
	return p.done
}

// Handler upgrades HTTP requests to WebSocket ports.
type Handler struct {
	upgrader  websocket.Upgrader
	exec      transport.Executor
	onConnect func(*Port)
	opts      options
}

// NewHandler creates a handler that calls onConnect for every accepted
// connection, then serves the port until it closes. Listeners must be
// registered inside onConnect to see the first payload.
func NewHandler(exec transport.Executor, onConnect func(*Port), opts ...Option) *Handler {
	return &Handler{
		exec:      exec,
		onConnect: onConnect,
		opts:      buildOptions(opts),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opts.logger.Warn("websocket upgrade failed", log.Err(err))
		return
	}
	port := newPort(conn, h.exec, h.opts)
	h.opts.logger.Info("websocket peer connected", log.String("remote", r.RemoteAddr))

	if h.onConnect != nil {
		h.onConnect(port)
	}
	if err := port.Serve(r.Context()); err != nil {
		h.opts.logger.Warn("websocket peer disconnected", log.Err(err))
	}
	_ = port.Close()
}

var (
	_ bus.Target      = (*Port)(nil)
	_ bus.EventTarget = (*Port)(nil)
	_ http.Handler    = (*Handler)(nil)
)
