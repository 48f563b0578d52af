// Package token issues and validates HS256 bearer tokens.
package token

import (
	"errors"
	"time"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

const leeway = 30 * time.Second

// Service signs access tokens with a process-wide key loaded at startup.
type Service struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewService constructs a token service for the given HMAC key and token lifetime.
func NewService(signKey []byte, ttl time.Duration) *Service {
	return &Service{signKey: signKey, ttl: ttl, now: time.Now}
}

// Issue creates a signed HS256 JWT for the given subject.
func (s *Service) Issue(subject uuid.UUID) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// Parse verifies the token and returns its subject.
// Undecodable tokens and bad subjects yield errs.ErrMalformedToken;
// signature, algorithm and expiry failures yield errs.ErrUnauthorized.
func (s *Service) Parse(raw string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return uuid.Nil, errs.ErrMalformedToken
		}
		return uuid.Nil, errs.ErrUnauthorized
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errs.ErrMalformedToken
	}
	return id, nil
}
