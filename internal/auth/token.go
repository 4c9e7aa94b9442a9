// Package auth issues and verifies the JWT access/refresh pairs used by the API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"blogapi/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevokedToken = errors.New("token has been revoked")
	ErrWrongType    = errors.New("wrong token type")
)

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// Remaining is the time left until the token expires.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// TokenPair is returned on login and registration.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Options configures token signing and lifetimes.
type Options struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// RevocationStore remembers revoked token ids until they would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Manager signs, parses and revokes tokens.
type Manager struct {
	opts    Options
	revoked RevocationStore
	now     func() time.Time
}

// NewManager builds a Manager. A nil store disables revocation checks.
func NewManager(opts Options, store RevocationStore) *Manager {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{opts: opts, revoked: store, now: time.Now}
}

// IssuePair signs a fresh access and refresh token for user.
func (m *Manager) IssuePair(user *models.User) (TokenPair, error) {
	access, err := m.issue(user, TokenTypeAccess, m.opts.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.issue(user, TokenTypeRefresh, m.opts.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// IssueAccess signs a new access token carrying the identity claims of a
// verified refresh token.
func (m *Manager) IssueAccess(refresh *Claims) (string, error) {
	uid, err := refresh.UserID()
	if err != nil {
		return "", err
	}
	user := &models.User{
		ID:          uid,
		Username:    refresh.Username,
		Email:       refresh.Email,
		IsStaff:     refresh.IsStaff,
		IsSuperuser: refresh.IsSuperuser,
	}
	return m.issue(user, TokenTypeAccess, m.opts.AccessTTL)
}

func (m *Manager) issue(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		Username:    user.Username,
		Email:       user.Email,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    m.opts.Issuer,
			Audience:  jwt.ClaimStrings{m.opts.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.opts.Secret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// Parse verifies raw and returns its claims. The token must be signed with
// HMAC, carry the configured issuer and audience, be of wantType and not revoked.
func (m *Manager) Parse(ctx context.Context, raw, wantType string) (*Claims, error) {
	claims := &Claims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.opts.Issuer))
	}
	if m.opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(m.opts.Audience))
	}

	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(m.opts.Secret), nil
	}, parserOpts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrWrongType
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}

	if m.revoked != nil && claims.ID != "" {
		revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}
	return claims, nil
}

// Revoke blacklists the token until its natural expiry.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.revoked == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := claims.Remaining(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.revoked.Revoke(ctx, claims.ID, ttl)
}
