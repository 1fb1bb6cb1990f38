// Package log provides the logging abstraction used by postbus components.
//
// Components accept a [Logger] and never import a logging library directly.
// A zerolog adapter and a no-op logger are provided:
//
//	logger := log.NewZerologAdapter(zerolog.InfoLevel)
//	b, err := bus.New(port, port, bus.WithLogger(log.WithComponent(logger, "bus")))
//
// Use [NewNoopLogger] in tests or when the embedding application does not
// want bus output.
package log
