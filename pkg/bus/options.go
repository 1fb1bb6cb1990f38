package bus

import "github.com/bft-labs/postbus/pkg/log"

// Option configures optional behavior of a Sink, Source or Bus.
type Option func(*options)

type options struct {
	logger       log.Logger
	errorHandler func(error)
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for flush, drop and failure messages.
// If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithErrorHandler sets the function called when a transport write fails
// outside of an explicit Flush call (immediate sends and stability flushes).
// If not provided, failures are logged at error level.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}
