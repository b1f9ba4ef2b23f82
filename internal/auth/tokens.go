// Package auth issues and verifies the credentials used by the HTTP API:
// bcrypt password hashes and HMAC-signed access and refresh tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for malformed, tampered or mistyped tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// TokenConfig holds signing secrets and lifetimes. Access and refresh tokens
// are signed with different secrets.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Claims are the custom claims carried by every token.
type Claims struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	TokenType TokenType `json:"tokenType"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// TokenManager signs and validates tokens.
type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenManager creates a TokenManager. Empty TTLs fall back to 15 minutes
// for access and 7 days for refresh tokens.
func NewTokenManager(config TokenConfig) *TokenManager {
	if config.AccessTTL <= 0 {
		config.AccessTTL = 15 * time.Minute
	}
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "manageease"
	}
	return &TokenManager{config: config, now: time.Now}
}

// Issue generates a fresh access and refresh token for a user.
func (m *TokenManager) Issue(userID, email string) (TokenPair, error) {
	access, err := m.generate(userID, email, TokenAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.generate(userID, email, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.config.AccessTTL.Seconds()),
	}, nil
}

// RefreshTTL is the lifetime of refresh tokens.
func (m *TokenManager) RefreshTTL() time.Duration {
	return m.config.RefreshTTL
}

func (m *TokenManager) generate(userID, email string, typ TokenType) (string, error) {
	secret, ttl := m.secret(typ), m.config.AccessTTL
	if typ == TokenRefresh {
		ttl = m.config.RefreshTTL
	}

	now := m.now()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *TokenManager) secret(typ TokenType) []byte {
	if typ == TokenRefresh {
		return []byte(m.config.RefreshSecret)
	}
	return []byte(m.config.AccessSecret)
}

// ValidateAccess validates an access token.
func (m *TokenManager) ValidateAccess(token string) (*Claims, error) {
	return m.validate(token, TokenAccess)
}

// ValidateRefresh validates a refresh token.
func (m *TokenManager) ValidateRefresh(token string) (*Claims, error) {
	return m.validate(token, TokenRefresh)
}

func (m *TokenManager) validate(raw string, typ TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret(typ), nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.config.Issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != typ || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
