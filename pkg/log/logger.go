package log

import "time"

// Logger provides structured logging capabilities.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Channel creates a field naming a bus channel.
func Channel(name string) Field {
	return Field{Key: "channel", Value: name}
}

// Count creates a field holding an envelope count.
func Count(n int) Field {
	return Field{Key: "count", Value: n}
}

// With returns a Logger that prepends fields to every entry.
func With(l Logger, fields ...Field) Logger {
	return &fieldLogger{next: l, fields: fields}
}

// WithComponent returns a Logger that adds a "component" field to every entry.
func WithComponent(l Logger, name string) Logger {
	return With(l, String("component", name))
}

type fieldLogger struct {
	next   Logger
	fields []Field
}

func (f *fieldLogger) with(fields []Field) []Field {
	out := make([]Field, 0, len(f.fields)+len(fields))
	return append(append(out, f.fields...), fields...)
}

func (f *fieldLogger) Debug(msg string, fields ...Field) { f.next.Debug(msg, f.with(fields)...) }
func (f *fieldLogger) Info(msg string, fields ...Field)  { f.next.Info(msg, f.with(fields)...) }
func (f *fieldLogger) Warn(msg string, fields ...Field)  { f.next.Warn(msg, f.with(fields)...) }
func (f *fieldLogger) Error(msg string, fields ...Field) { f.next.Error(msg, f.with(fields)...) }
