package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"kycflow/internal/verification/models"
	id "kycflow/pkg/domain"
	"kycflow/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix = "kycflow:session:"
	subjectKeyPrefix = "kycflow:subject:"
	// idleKey scores in-progress session ids by last activity (unix ms).
	idleKey = "kycflow:sessions:idle"
)

// RedisSessionStore keeps sessions as JSON documents. Writes are optimistic:
// WATCH the session key, check the version, then MULTI/EXEC.
type RedisSessionStore struct {
	client *redis.Client
}

func New(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func subjectKey(subjectID id.SubjectID) string {
	return subjectKeyPrefix + subjectID.String()
}

func (s *RedisSessionStore) Create(ctx context.Context, session *models.Session) error {
	key := sessionKey(session.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
		}
		doc := session.Clone()
		doc.Version = 1
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.ZAdd(ctx, subjectKey(session.Subject.ID), redis.Z{
				Score:  float64(session.CreatedAt.UnixMilli()),
				Member: session.ID.String(),
			})
			indexIdle(ctx, pipe, doc)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return err
	}
	session.Version = 1
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return load(ctx, s.client, sessionID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, sessionID id.SessionID) (*models.Session, error) {
	raw, err := c.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Save writes the session if nobody saved it since it was loaded.
func (s *RedisSessionStore) Save(ctx context.Context, session *models.Session) error {
	key := sessionKey(session.ID)
	next := session.Version + 1
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := load(ctx, tx, session.ID)
		if err != nil {
			return err
		}
		if stored.Version != session.Version {
			return fmt.Errorf("session %s at version %d, have %d: %w", session.ID, stored.Version, session.Version, sentinel.ErrConflict)
		}
		doc := session.Clone()
		doc.Version = next
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			indexIdle(ctx, pipe, doc)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return err
	}
	session.Version = next
	return nil
}

// indexIdle keeps only in-progress sessions in the idle index.
func indexIdle(ctx context.Context, pipe redis.Pipeliner, session *models.Session) {
	if session.Status == models.SessionInProgress {
		pipe.ZAdd(ctx, idleKey, redis.Z{
			Score:  float64(session.LastActivityAt.UnixMilli()),
			Member: session.ID.String(),
		})
		return
	}
	pipe.ZRem(ctx, idleKey, session.ID.String())
}

func (s *RedisSessionStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Session, error) {
	members, err := s.client.ZRange(ctx, subjectKey(subjectID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list subject sessions: %w", err)
	}
	out := make([]*models.Session, 0, len(members))
	for _, m := range members {
		sessionID, err := id.ParseSessionID(m)
		if err != nil {
			return nil, fmt.Errorf("corrupt subject index entry %q: %w", m, err)
		}
		session, err := s.Load(ctx, sessionID)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *RedisSessionStore) ListIdle(ctx context.Context, cutoff time.Time, limit int) ([]id.SessionID, error) {
	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	members, err := s.client.ZRangeByScore(ctx, idleKey, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("list idle sessions: %w", err)
	}
	ids := make([]id.SessionID, 0, len(members))
	for _, m := range members {
		sessionID, err := id.ParseSessionID(m)
		if err != nil {
			return nil, fmt.Errorf("corrupt idle index entry %q: %w", m, err)
		}
		ids = append(ids, sessionID)
	}
	return ids, nil
}
