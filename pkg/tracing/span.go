// Package tracing records the stages of a request as a tree of timed spans
// carried in the context. A finished tree is written to slog at debug level.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newsdex/newsdex/pkg/logger"
)

type contextKey struct{}

// Span is one timed stage. Children may be added concurrently.
type Span struct {
	Name    string
	TraceID string

	mu       sync.Mutex
	start    time.Time
	duration time.Duration
	ended    bool
	children []*Span
	attrs    []any
}

// Start opens a span named name. It becomes a child of the span already in
// ctx; otherwise it is a root whose trace id is the request id, or a fresh
// one outside a request.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{Name: name, start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	} else if id := logger.RequestIDFromContext(ctx); id != "" {
		span.TraceID = id
	} else {
		span.TraceID = uuid.NewString()
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// FromContext returns the innermost span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// End fixes the span's duration. Later calls are ignored.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.start)
		s.ended = true
	}
}

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// SetAttr attaches a key-value pair that is logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Children returns the direct children in start order.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Span, len(s.children))
	copy(out, s.children)
	return out
}

// Log writes the span and its descendants to l, one record per span.
func (s *Span) Log(ctx context.Context, l *slog.Logger) {
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.log(ctx, l, 0)
}

func (s *Span) log(ctx context.Context, l *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := append([]any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_us", s.duration.Microseconds(),
		"depth", depth,
	}, s.attrs...)
	children := s.children
	s.mu.Unlock()

	l.DebugContext(ctx, "span", attrs...)
	for _, child := range children {
		child.log(ctx, l, depth+1)
	}
}
