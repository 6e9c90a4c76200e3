package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker refuses calls.
var ErrCircuitOpen = errors.New("llm: circuit open")

// Observer receives the latency of each provider call.
type Observer interface {
	ObserveExternalCall(dependency, operation string, d time.Duration, err error)
}

// BreakerClient guards a Client with a circuit breaker and a per-call
// timeout.
type BreakerClient struct {
	inner    Client
	cb       *gobreaker.CircuitBreaker[Response]
	timeout  time.Duration
	observer Observer
}

type BreakerOptions struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
	CallTimeout time.Duration
	Observer    Observer
}

func NewBreakerClient(inner Client, opts BreakerOptions) *BreakerClient {
	if opts.Name == "" {
		opts.Name = "llm"
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	maxFailures := opts.MaxFailures
	cb := gobreaker.NewCircuitBreaker[Response](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellations say nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerClient{inner: inner, cb: cb, timeout: opts.CallTimeout, observer: opts.Observer}
}

func (c *BreakerClient) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := c.cb.Execute(func() (Response, error) {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return c.inner.Complete(callCtx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = errors.Join(ErrCircuitOpen, err)
	}
	if c.observer != nil {
		c.observer.ObserveExternalCall("llm", "complete", time.Since(start), err)
	}
	return resp, err
}

// State reports the breaker state for health output.
func (c *BreakerClient) State() string {
	return c.cb.State().String()
}
