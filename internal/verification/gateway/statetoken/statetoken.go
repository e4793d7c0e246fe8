// Package statetoken signs the state parameter carried through a hosted
// verification flow, binding the return leg to one session step and handle.
package statetoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
)

const issuer = "kycflow"

// Claims identify the session step a hosted flow returns to.
type Claims struct {
	SessionID string `json:"sid"`
	StepID    string `json:"step"`
	Handle    string `json:"handle"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HMAC-SHA256 state tokens.
type Signer struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func New(signingKey string, ttl time.Duration) *Signer {
	return &Signer{signingKey: []byte(signingKey), ttl: ttl, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

func (s *Signer) Sign(sessionID id.SessionID, stepID, handle string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID.String(),
		StepID:    stepID,
		Handle:    handle,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Verify checks signature, issuer and expiry and returns the claims.
func (s *Signer) Verify(state string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(state, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "verification state has expired")
		}
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid verification state")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid verification state")
	}
	if _, err := id.ParseSessionID(claims.SessionID); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid verification state")
	}
	return claims, nil
}

// ParsedSessionID returns the session id carried in the claims.
func (c *Claims) ParsedSessionID() id.SessionID {
	sid, _ := id.ParseSessionID(c.SessionID)
	return sid
}
