// Package tracing records per-request span trees and logs them through slog
// when the request completes. Spans travel in the request context; every
// Span method is safe on a nil receiver so disabled tracing costs nothing.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span is a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	Err       error
	mu        sync.Mutex
}

// Tracer starts root spans and logs finished trees.
type Tracer struct {
	enabled bool
	logger  *slog.Logger
}

// New creates a Tracer. A disabled tracer returns nil spans.
func New(enabled bool, logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{enabled: enabled, logger: logger.With("component", "tracing")}
}

// Start creates a root span and stores it in the returned context.
func (t *Tracer) Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	if t == nil || !t.enabled {
		return ctx, nil
	}
	span := newSpan(name, traceID)
	return context.WithValue(ctx, spanKey, span), span
}

// Finish ends span and logs the whole tree.
func (t *Tracer) Finish(span *Span) {
	if t == nil || span == nil {
		return
	}
	span.End()
	span.log(t.logger, 0)
}

// StartChild creates a child of the span in ctx. Without a parent span it
// returns ctx and a nil span.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := newSpan(name, parent.TraceID)
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey, child), child
}

// FromContext returns the current span, or nil.
func FromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
}

// End records the span duration.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.Duration == 0 {
		s.Duration = time.Since(s.StartTime)
	}
	s.mu.Unlock()
}

// SetAttr attaches an attribute.
func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// Fail records err on the span.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err.Error())
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	logger.Info("span", attrs...)
	for _, child := range children {
		child.log(logger, depth+1)
	}
}
