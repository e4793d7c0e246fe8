// Package sandbox is a scripted in-process verifier for development and tests.
// Each initiated check follows an Outcome: a number of pending polls followed
// by a verdict.
package sandbox

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"kycflow/internal/verification/gateway"
	"kycflow/internal/verification/gateway/statetoken"
	"kycflow/internal/verification/models"
)

// Outcome scripts one check.
type Outcome struct {
	PendingPolls int
	State        gateway.State
	Confidence   int
	Reason       string
}

// Approve completes after pendingPolls polls with the given confidence.
func Approve(confidence, pendingPolls int) Outcome {
	return Outcome{PendingPolls: pendingPolls, State: gateway.StateCompleted, Confidence: confidence}
}

// Reject fails after pendingPolls polls.
func Reject(reason string, pendingPolls int) Outcome {
	return Outcome{PendingPolls: pendingPolls, State: gateway.StateFailed, Reason: reason}
}

// Never stays pending forever.
func Never() Outcome {
	return Outcome{PendingPolls: -1}
}

type check struct {
	req       gateway.InitiateRequest
	outcome   Outcome
	polls     int
	cancelled bool
}

// Gateway is safe for concurrent use.
type Gateway struct {
	mu sync.Mutex

	name           string
	defaultOutcome Outcome
	queue          []Outcome
	initiateErrs   []error
	pollErrs       []error
	checks         map[string]*check

	signer    *statetoken.Signer
	returnURL string
	now       func() time.Time
}

type Option func(*Gateway)

// WithDefaultOutcome is used when no scripted outcome is queued.
func WithDefaultOutcome(o Outcome) Option {
	return func(g *Gateway) {
		g.defaultOutcome = o
	}
}

// WithStateSigner makes handles carry a redirect to returnURL with a signed
// state, simulating a hosted flow that sends the subject straight back.
func WithStateSigner(signer *statetoken.Signer, returnURL string) Option {
	return func(g *Gateway) {
		g.signer = signer
		g.returnURL = returnURL
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

func New(name string, opts ...Option) *Gateway {
	g := &Gateway{
		name:           name,
		defaultOutcome: Approve(95, 1),
		checks:         make(map[string]*check),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enqueue scripts the next initiated checks, in order.
func (g *Gateway) Enqueue(outcomes ...Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue = append(g.queue, outcomes...)
}

// FailNextInitiate makes the next Initiate call return err.
func (g *Gateway) FailNextInitiate(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiateErrs = append(g.initiateErrs, err)
}

// FailNextPoll makes the next PollStatus call return err.
func (g *Gateway) FailNextPoll(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pollErrs = append(g.pollErrs, err)
}

func (g *Gateway) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, gateway.NewProviderError(gateway.ErrorTimeout, g.name, "initiate", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.initiateErrs) > 0 {
		err := g.initiateErrs[0]
		g.initiateErrs = g.initiateErrs[1:]
		return nil, err
	}

	outcome := g.defaultOutcome
	if len(g.queue) > 0 {
		outcome = g.queue[0]
		g.queue = g.queue[1:]
	}

	h := &gateway.Handle{
		ID:       "sbx_" + uuid.NewString(),
		Kind:     req.Kind,
		Provider: g.name,
		IssuedAt: g.now(),
	}
	if g.signer != nil {
		state, err := g.signer.Sign(req.SessionID, req.StepID, h.ID)
		if err != nil {
			return nil, gateway.NewProviderError(gateway.ErrorInternal, g.name, "sign state", err)
		}
		h.RedirectURL = g.returnURL + "?state=" + url.QueryEscape(state)
	}
	g.checks[h.ID] = &check{req: req, outcome: outcome}
	return h, nil
}

func (g *Gateway) PollStatus(ctx context.Context, handle gateway.Handle) (*gateway.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, gateway.NewProviderError(gateway.ErrorTimeout, g.name, "poll", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.pollErrs) > 0 {
		err := g.pollErrs[0]
		g.pollErrs = g.pollErrs[1:]
		return nil, err
	}

	c, ok := g.checks[handle.ID]
	if !ok {
		return nil, gateway.NewProviderError(gateway.ErrorNotFound, g.name, "unknown handle "+handle.ID, nil)
	}

	now := g.now()
	if c.cancelled {
		return &gateway.Status{State: gateway.StateFailed, Reason: "cancelled", CheckedAt: now}, nil
	}
	if c.outcome.PendingPolls < 0 || c.polls < c.outcome.PendingPolls {
		c.polls++
		return &gateway.Status{State: gateway.StatePending, CheckedAt: now}, nil
	}
	return &gateway.Status{
		State:      c.outcome.State,
		Confidence: gateway.ClampConfidence(c.outcome.Confidence),
		Reason:     c.outcome.Reason,
		CheckedAt:  now,
	}, nil
}

func (g *Gateway) Cancel(_ context.Context, handle gateway.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.checks[handle.ID]; ok {
		c.cancelled = true
	}
	return nil
}

// Cancelled reports whether a handle was cancelled.
func (g *Gateway) Cancelled(handleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.checks[handleID]
	return ok && c.cancelled
}

// Initiated returns the requests seen so far, for assertions.
func (g *Gateway) Initiated() []gateway.InitiateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]gateway.InitiateRequest, 0, len(g.checks))
	for _, c := range g.checks {
		out = append(out, c.req)
	}
	return out
}

// Kind-scoped constructors used by main.
func NewDocument(opts ...Option) *Gateway {
	return New("sandbox-"+string(models.VerifierDocument), opts...)
}

func NewBiometric(opts ...Option) *Gateway {
	return New("sandbox-"+string(models.VerifierBiometric), opts...)
}
