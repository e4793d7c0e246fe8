package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Session stores and gateway adapters
// return these (optionally wrapped) so services can translate them into
// domain errors:
//   - ErrNotFound: session or handle does not exist in the backing store
//   - ErrConflict: optimistic version check failed, another writer got there first
//   - ErrExpired: record aged out of its retention window
//   - ErrInvalidState: record is in the wrong state for the requested operation
//   - ErrUnavailable: backing service temporarily unavailable
//
// Field-level validation problems are not errors at this layer; they travel in
// step snapshots.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
