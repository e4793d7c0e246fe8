// Package storetest is a behavioral suite every session store must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
	"kycflow/pkg/platform/sentinel"
)

// SessionStore is the contract under test.
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	Load(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Session, error)
	ListIdle(ctx context.Context, cutoff time.Time, limit int) ([]id.SessionID, error)
}

var base = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

// NewSession builds a representative in-progress session.
func NewSession(subject id.SubjectID, createdAt time.Time) *models.Session {
	return &models.Session{
		ID: id.NewSessionID(),
		Subject: models.Subject{
			ID:        subject,
			LegalName: "Asha Rao",
			Address:   models.Address{City: "Bengaluru", Country: "IN"},
		},
		Context: models.TransactionContext{
			Amount:       decimal.RequireFromString("5000.50"),
			Currency:     "INR",
			Counterparty: models.CounterpartySelf,
		},
		Tier: models.TierEnhanced,
		Steps: []models.StepInstance{
			{StepID: "personal_info", Mode: models.ModeSync, Status: models.StepCompleted,
				Values: map[string]string{"legal_name": "Asha Rao"}, StartedAt: createdAt, CompletedAt: createdAt},
			{StepID: "identity_document", Mode: models.ModeAsync, Verifier: models.VerifierDocument,
				Status: models.StepInProgress, Handle: "chk_1", InitiatedAt: createdAt},
			{StepID: "review", Mode: models.ModeSync, Status: models.StepPending},
		},
		CurrentIndex:   1,
		Status:         models.SessionInProgress,
		CreatedAt:      createdAt,
		LastActivityAt: createdAt,
	}
}

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) SessionStore) {
	ctx := context.Background()

	t.Run("create then load round-trips", func(t *testing.T) {
		st := newStore(t)
		s := NewSession("subject-roundtrip", base)
		require.NoError(t, st.Create(ctx, s))
		assert.Equal(t, int64(1), s.Version)

		loaded, err := st.Load(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, loaded.ID)
		assert.Equal(t, int64(1), loaded.Version)
		assert.Equal(t, s.Tier, loaded.Tier)
		assert.True(t, s.Context.Amount.Equal(loaded.Context.Amount))
		assert.Equal(t, s.Steps[1].Handle, loaded.Steps[1].Handle)
		assert.Equal(t, "Asha Rao", loaded.Steps[0].Values["legal_name"])
		assert.True(t, s.LastActivityAt.Equal(loaded.LastActivityAt))
	})

	t.Run("create twice conflicts", func(t *testing.T) {
		st := newStore(t)
		s := NewSession("subject-dup", base)
		require.NoError(t, st.Create(ctx, s))
		err := st.Create(ctx, s)
		assert.True(t, errors.Is(err, sentinel.ErrConflict))
	})

	t.Run("load unknown is not found", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Load(ctx, id.NewSessionID())
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	})

	t.Run("loaded sessions do not alias stored state", func(t *testing.T) {
		st := newStore(t)
		s := NewSession("subject-alias", base)
		require.NoError(t, st.Create(ctx, s))

		loaded, err := st.Load(ctx, s.ID)
		require.NoError(t, err)
		loaded.Steps[0].Values["legal_name"] = "changed"

		again, err := st.Load(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "Asha Rao", again.Steps[0].Values["legal_name"])
	})

	t.Run("save is a compare-and-swap on version", func(t *testing.T) {
		st := newStore(t)
		s := NewSession("subject-cas", base)
		require.NoError(t, st.Create(ctx, s))

		first, err := st.Load(ctx, s.ID)
		require.NoError(t, err)
		second, err := st.Load(ctx, s.ID)
		require.NoError(t, err)

		first.CurrentIndex = 2
		require.NoError(t, st.Save(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		second.Status = models.SessionAbandoned
		err = st.Save(ctx, second)
		assert.True(t, errors.Is(err, sentinel.ErrConflict))

		loaded, err := st.Load(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.CurrentIndex)
		assert.Equal(t, models.SessionInProgress, loaded.Status)
		assert.Equal(t, int64(2), loaded.Version)
	})

	t.Run("save unknown is not found", func(t *testing.T) {
		st := newStore(t)
		s := NewSession("subject-missing", base)
		s.Version = 1
		assert.True(t, errors.Is(st.Save(ctx, s), sentinel.ErrNotFound))
	})

	t.Run("list by subject is ordered by creation", func(t *testing.T) {
		st := newStore(t)
		later := NewSession("subject-history", base.Add(time.Hour))
		earlier := NewSession("subject-history", base)
		other := NewSession("someone-else", base)
		for _, s := range []*models.Session{later, earlier, other} {
			require.NoError(t, st.Create(ctx, s))
		}

		list, err := st.ListBySubject(ctx, "subject-history")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, earlier.ID, list[0].ID)
		assert.Equal(t, later.ID, list[1].ID)
	})

	t.Run("list idle returns stale in-progress sessions only", func(t *testing.T) {
		st := newStore(t)
		stale := NewSession("subject-idle-1", base)
		staler := NewSession("subject-idle-2", base.Add(-time.Hour))
		fresh := NewSession("subject-idle-3", base.Add(2*time.Hour))
		done := NewSession("subject-idle-4", base)
		for _, s := range []*models.Session{stale, staler, fresh, done} {
			require.NoError(t, st.Create(ctx, s))
		}
		done.Status = models.SessionCompleted
		require.NoError(t, st.Save(ctx, done))

		ids, err := st.ListIdle(ctx, base.Add(time.Hour), 10)
		require.NoError(t, err)
		assert.Equal(t, []id.SessionID{staler.ID, stale.ID}, ids)

		ids, err = st.ListIdle(ctx, base.Add(time.Hour), 1)
		require.NoError(t, err)
		assert.Equal(t, []id.SessionID{staler.ID}, ids)
	})
}
