package gateway

import (
	"context"
	"log/slog"

	"kycflow/pkg/platform/circuit"
)

// Breaker short-circuits calls to a failing backend. While open, calls fail
// fast with a retryable provider_outage error. Only retryable errors count as
// failures; a verifier rejecting a check is a healthy answer.
type Breaker struct {
	next    Gateway
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type BreakerOption func(*Breaker)

func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(b *Breaker) {
		b.logger = logger
	}
}

func NewBreaker(next Gateway, cb *circuit.Breaker, opts ...BreakerOption) *Breaker {
	b := &Breaker{next: next, breaker: cb}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Initiate(ctx context.Context, req InitiateRequest) (*Handle, error) {
	if !b.breaker.AllowRequest() {
		return nil, b.openError()
	}
	h, err := b.next.Initiate(ctx, req)
	b.record(ctx, err)
	return h, err
}

func (b *Breaker) PollStatus(ctx context.Context, handle Handle) (*Status, error) {
	if !b.breaker.AllowRequest() {
		return nil, b.openError()
	}
	st, err := b.next.PollStatus(ctx, handle)
	b.record(ctx, err)
	return st, err
}

// Cancel bypasses the breaker; it is best effort anyway.
func (b *Breaker) Cancel(ctx context.Context, handle Handle) error {
	if c, ok := b.next.(Canceler); ok {
		return c.Cancel(ctx, handle)
	}
	return nil
}

func (b *Breaker) record(ctx context.Context, err error) {
	var change circuit.Change
	if err != nil && IsRetryable(err) {
		_, change = b.breaker.RecordFailure()
	} else {
		_, change = b.breaker.RecordSuccess()
	}
	if b.logger == nil {
		return
	}
	if change.Opened {
		b.logger.WarnContext(ctx, "verifier circuit opened", "breaker", b.breaker.Name())
	}
	if change.Closed {
		b.logger.InfoContext(ctx, "verifier circuit closed", "breaker", b.breaker.Name())
	}
}

func (b *Breaker) openError() error {
	return NewProviderError(ErrorProviderOutage, b.breaker.Name(), "circuit open", ErrCircuitOpen)
}
