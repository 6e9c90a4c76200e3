package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnavailable wraps calls rejected while the breaker is open.
var ErrUnavailable = errors.New("vectorstore: index unavailable")

// Observer receives the latency of each index call.
type Observer interface {
	ObserveExternalCall(dependency, operation string, d time.Duration, err error)
}

// GuardedIndex adds a circuit breaker, per-call timeout, tracing and latency
// metrics to an Index.
type GuardedIndex struct {
	inner    Index
	name     string
	cb       *gobreaker.CircuitBreaker[any]
	timeout  time.Duration
	observer Observer
	tracer   trace.Tracer
}

type GuardOptions struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
	CallTimeout time.Duration
	Observer    Observer
}

func NewGuardedIndex(inner Index, opts GuardOptions) *GuardedIndex {
	if opts.Name == "" {
		opts.Name = "vectorstore"
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	maxFailures := opts.MaxFailures
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) ||
				errors.Is(err, ErrInvalidTopK) || errors.Is(err, ErrDimensionMismatch)
		},
	})
	return &GuardedIndex{
		inner:    inner,
		name:     opts.Name,
		cb:       cb,
		timeout:  opts.CallTimeout,
		observer: opts.Observer,
		tracer:   otel.Tracer("scout.internal.vectorstore"),
	}
}

func (g *GuardedIndex) Upsert(ctx context.Context, vectors []Vector) error {
	_, err := g.execute(ctx, "upsert", func(ctx context.Context) (any, error) {
		return nil, g.inner.Upsert(ctx, vectors)
	})
	return err
}

func (g *GuardedIndex) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	ctx, span := g.tracer.Start(ctx, "scout.vector.query")
	defer span.End()
	span.SetAttributes(
		attribute.String("scout.vector.index", g.name),
		attribute.Int("scout.vector.top_k", req.TopK),
	)

	res, err := g.execute(ctx, "query", func(ctx context.Context) (any, error) {
		return g.inner.Query(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	matches, ok := res.([]Match)
	if !ok && res != nil {
		return nil, fmt.Errorf("vectorstore: unexpected query result %T", res)
	}
	span.SetAttributes(attribute.Int("scout.vector.matches", len(matches)))
	return matches, nil
}

func (g *GuardedIndex) Fetch(ctx context.Context, ids []string) (map[string]Vector, error) {
	res, err := g.execute(ctx, "fetch", func(ctx context.Context) (any, error) {
		return g.inner.Fetch(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	vectors, ok := res.(map[string]Vector)
	if !ok && res != nil {
		return nil, fmt.Errorf("vectorstore: unexpected fetch result %T", res)
	}
	return vectors, nil
}

// State reports the breaker state for health output.
func (g *GuardedIndex) State() string {
	return g.cb.State().String()
}

func (g *GuardedIndex) execute(ctx context.Context, op string, fn func(context.Context) (any, error)) (any, error) {
	start := time.Now()
	res, err := g.cb.Execute(func() (any, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w (%s): %w", ErrUnavailable, g.name, err)
	}
	if g.observer != nil {
		g.observer.ObserveExternalCall("vectorstore", g.name+"."+op, time.Since(start), err)
	}
	return res, err
}
