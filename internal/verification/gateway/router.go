package gateway

import (
	"context"
	"fmt"

	"kycflow/internal/verification/models"
)

// Router dispatches to a backend by verifier kind. Register everything before
// serving; the registry is read-only afterwards.
type Router struct {
	backends map[models.VerifierKind]Gateway
}

func NewRouter() *Router {
	return &Router{backends: make(map[models.VerifierKind]Gateway)}
}

// Register adds a backend for a verifier kind.
func (r *Router) Register(kind models.VerifierKind, g Gateway) error {
	if _, exists := r.backends[kind]; exists {
		return fmt.Errorf("gateway for %s already registered", kind)
	}
	r.backends[kind] = g
	return nil
}

// Get retrieves the backend for a kind
func (r *Router) Get(kind models.VerifierKind) (Gateway, bool) {
	g, ok := r.backends[kind]
	return g, ok
}

// Kinds lists the registered verifier kinds.
func (r *Router) Kinds() []models.VerifierKind {
	kinds := make([]models.VerifierKind, 0, len(r.backends))
	for k := range r.backends {
		kinds = append(kinds, k)
	}
	return kinds
}

func (r *Router) Initiate(ctx context.Context, req InitiateRequest) (*Handle, error) {
	g, err := r.route(req.Kind)
	if err != nil {
		return nil, err
	}
	h, err := g.Initiate(ctx, req)
	if err != nil {
		return nil, err
	}
	if h.Kind == "" {
		h.Kind = req.Kind
	}
	return h, nil
}

func (r *Router) PollStatus(ctx context.Context, handle Handle) (*Status, error) {
	g, err := r.route(handle.Kind)
	if err != nil {
		return nil, err
	}
	return g.PollStatus(ctx, handle)
}

// Cancel forwards to the backend when it supports cancellation and is a
// no-op otherwise.
func (r *Router) Cancel(ctx context.Context, handle Handle) error {
	g, err := r.route(handle.Kind)
	if err != nil {
		return err
	}
	if c, ok := g.(Canceler); ok {
		return c.Cancel(ctx, handle)
	}
	return nil
}

func (r *Router) route(kind models.VerifierKind) (Gateway, error) {
	g, ok := r.backends[kind]
	if !ok {
		return nil, NewProviderError(ErrorInternal, "router", string(kind), ErrNoGatewayForKind)
	}
	return g, nil
}
