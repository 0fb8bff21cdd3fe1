// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the lifetime of issued tokens when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Identity is the authenticated subject carried by a verified token.
type Identity struct {
	UserID int64
}

// Claims are the JWT claims embedded in every issued token.
type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// TokenConfig holds the immutable settings of a TokenService.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// TokenIssuer mints tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

// TokenVerifier resolves a presented token to an Identity.
type TokenVerifier interface {
	Verify(token string) (Identity, bool)
}

// TokenService issues and verifies HS256-signed bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService creates a TokenService from cfg.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("token secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("ttl", cfg.TTL.String()).
			Errorf("token ttl must be positive")
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	s := &TokenService{
		secret: secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}
	s.parser = jwt.NewParser(parserOpts...)

	return s, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token for userID that expires after the configured TTL.
func (s *TokenService) Issue(userID int64) (string, error) {
	if userID <= 0 {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("user_id", userID).
			Errorf("user id must be positive")
	}

	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("user_id", userID).
			Wrap(err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry.
// Every failure mode (signature, algorithm, structure, expiry, subject)
// yields the same false result.
func (s *TokenService) Verify(token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}

	claims := &Claims{}
	parsed, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, false
	}

	if claims.UserID <= 0 || claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return Identity{}, false
	}
	return Identity{UserID: claims.UserID}, true
}

// Compile-time interface checks.
var (
	_ TokenIssuer   = (*TokenService)(nil)
	_ TokenVerifier = (*TokenService)(nil)
)
