// Package observability holds the logging and tracing hooks shared by the
// editor, the export pipeline and OCR. Everything defaults to no-ops.
package observability

import (
	"context"
	"time"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is one structured key/value pair attached to a log entry.
type Field interface {
	Key() string
	Value() interface{}
}

type field[T any] struct {
	key string
	val T
}

func (f field[T]) Key() string        { return f.key }
func (f field[T]) Value() interface{} { return f.val }

func String(key, value string) Field                 { return field[string]{key, value} }
func Int(key string, value int) Field                { return field[int]{key, value} }
func Float(key string, value float64) Field          { return field[float64]{key, value} }
func Bool(key string, value bool) Field              { return field[bool]{key, value} }
func Duration(key string, value time.Duration) Field { return field[time.Duration]{key, value} }
func Any(key string, value interface{}) Field        { return field[interface{}]{key, value} }

// Error carries err itself; loggers render it with Error().
func Error(key string, err error) Field { return field[error]{key, err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// Tracer opens spans around exports, export layers and OCR calls.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// Span names.
const (
	SpanExport      = "pdfedit.export"
	SpanExportLayer = "pdfedit.export.layer"
	SpanOCR         = "pdfedit.ocr"
)
