package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
	"kycflow/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresSessionStore persists sessions as JSONB documents with the fields
// the store queries on (subject, status, activity, version) as columns.
// Save is a compare-and-swap on the version column.
type PostgresSessionStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

func (s *PostgresSessionStore) Create(ctx context.Context, session *models.Session) error {
	doc := session.Clone()
	doc.Version = 1
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verification_sessions (id, subject_id, status, version, last_activity_at, created_at, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID.String(), session.Subject.ID.String(), string(doc.Status), doc.Version,
		doc.LastActivityAt, doc.CreatedAt, string(raw),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	session.Version = 1
	return nil
}

func (s *PostgresSessionStore) Load(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version, document FROM verification_sessions WHERE id = $1`, sessionID.String())
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// Save updates the row only if its version is still the one the caller loaded.
func (s *PostgresSessionStore) Save(ctx context.Context, session *models.Session) error {
	doc := session.Clone()
	doc.Version = session.Version + 1
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE verification_sessions
		SET status = $3, version = $4, last_activity_at = $5, document = $6
		WHERE id = $1 AND version = $2`,
		session.ID.String(), session.Version, string(doc.Status), doc.Version, doc.LastActivityAt, string(raw),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM verification_sessions WHERE id = $1)`, session.ID.String(),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("session %s version %d is stale: %w", session.ID, session.Version, sentinel.ErrConflict)
	}
	session.Version = doc.Version
	return nil
}

func (s *PostgresSessionStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, document FROM verification_sessions
		WHERE subject_id = $1
		ORDER BY created_at ASC`, subjectID.String())
	if err != nil {
		return nil, fmt.Errorf("list subject sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func (s *PostgresSessionStore) ListIdle(ctx context.Context, cutoff time.Time, limit int) ([]id.SessionID, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM verification_sessions
		WHERE status = $1 AND last_activity_at < $2
		ORDER BY last_activity_at ASC
		LIMIT $3`, string(models.SessionInProgress), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list idle sessions: %w", err)
	}
	defer rows.Close()

	var ids []id.SessionID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		sessionID, err := id.ParseSessionID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, sessionID)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		version int64
		raw     []byte
	)
	if err := row.Scan(&version, &raw); err != nil {
		return nil, err
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	session.Version = version
	return &session, nil
}
