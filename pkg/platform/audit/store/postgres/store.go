package postgres

import (
	"context"
	"database/sql"
	"fmt"

	id "kycflow/pkg/domain"
	audit "kycflow/pkg/platform/audit"

	"github.com/google/uuid"
)

// Store implements audit.Store on the audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an audit event. The category is always derived from the action.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := audit.AuditEvent(event.Action).Category()

	var sessionID *uuid.UUID
	if !event.SessionID.IsNil() {
		sid := uuid.UUID(event.SessionID)
		sessionID = &sid
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, session_id, subject_id, action,
			tier, step_id, decision, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		string(category),
		event.Timestamp,
		sessionID,
		string(event.SubjectID),
		event.Action,
		event.Tier,
		event.StepID,
		event.Decision,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns events for a subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, session_id, subject_id, action,
			   tier, step_id, decision, reason, request_id
		FROM audit_events
		WHERE subject_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(subjectID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			category  string
			subjectID string
			sessionID *uuid.UUID
			event     audit.Event
		)

		err := rows.Scan(
			&category,
			&event.Timestamp,
			&sessionID,
			&subjectID,
			&event.Action,
			&event.Tier,
			&event.StepID,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.EventCategory(category)
		event.SubjectID = id.SubjectID(subjectID)
		if sessionID != nil {
			event.SessionID = id.SessionID(*sessionID)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
