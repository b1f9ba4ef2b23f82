package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestManager() *TokenManager {
	return NewTokenManager(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, h.Verify("correct horse", hash))
	assert.False(t, h.Verify("wrong horse", hash))
	assert.False(t, h.Verify("correct horse", "not-a-hash"))
}

func TestNewPasswordHasher_DefaultsCost(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(99).cost)
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(bcrypt.MinCost).cost)
}

func TestTokenManager_Issue(t *testing.T) {
	m := newTestManager()

	pair, err := m.Issue("user-1", "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(60), pair.ExpiresIn)

	claims, err := m.ValidateAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.Equal(t, TokenAccess, claims.TokenType)

	claims, err = m.ValidateRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenRefresh, claims.TokenType)
}

func TestTokenManager_RejectsWrongType(t *testing.T) {
	m := newTestManager()
	pair, err := m.Issue("user-1", "ann@example.com")
	require.NoError(t, err)

	_, err = m.ValidateAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	m := newTestManager()
	other := NewTokenManager(TokenConfig{AccessSecret: "other", RefreshSecret: "other-refresh"})

	pair, err := other.Issue("user-1", "ann@example.com")
	require.NoError(t, err)

	_, err = m.ValidateAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateAccess("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	tampered := pair.AccessToken[:strings.LastIndex(pair.AccessToken, ".")] + ".sig"
	_, err = m.ValidateAccess(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Expired(t *testing.T) {
	m := newTestManager()
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	pair, err := m.Issue("user-1", "ann@example.com")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = m.ValidateAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = m.ValidateRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestNewTokenManager_Defaults(t *testing.T) {
	m := NewTokenManager(TokenConfig{AccessSecret: "a", RefreshSecret: "b"})
	assert.Equal(t, 15*time.Minute, m.config.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, m.RefreshTTL())
	assert.Equal(t, "manageease", m.config.Issuer)
}
