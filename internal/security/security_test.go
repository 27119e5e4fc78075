package security

import (
	"testing"
	"time"

	"carrental-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager(t *testing.T) {
	m := NewTokenManager("test-secret", "identity", time.Hour)

	t.Run("round trip", func(t *testing.T) {
		tok, err := m.GenerateAccessToken(42, "Ann", []string{"customer"})
		require.NoError(t, err)

		claims, err := m.ValidateToken(tok)
		require.NoError(t, err)
		assert.Equal(t, int64(42), claims.UserID)
		assert.Equal(t, domain.Identity{UserID: 42, Name: "Ann", Role: domain.RoleCustomer}, claims.Identity())
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("other", "identity", time.Hour)
		tok, err := other.GenerateAccessToken(1, "x", nil)
		require.NoError(t, err)

		_, err = m.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		claims := UserClaims{
			UserID: 1,
			Type:   TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				Issuer:    "identity",
				Audience:  jwt.ClaimStrings{accessAudience},
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = m.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong type", func(t *testing.T) {
		claims := UserClaims{
			UserID: 1,
			Type:   "refresh",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
				Issuer:    "identity",
				Audience:  jwt.ClaimStrings{accessAudience},
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = m.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestClaimsIdentityRole(t *testing.T) {
	tests := []struct {
		roles []string
		want  domain.Role
	}{
		{nil, domain.RoleCustomer},
		{[]string{"staff"}, domain.RoleStaff},
		{[]string{"admin", "staff"}, domain.RoleAdmin},
		{[]string{"staff", "admin"}, domain.RoleAdmin},
		{[]string{"system"}, domain.RoleCustomer},
	}
	for _, tt := range tests {
		c := &UserClaims{UserID: 7, Roles: tt.roles}
		assert.Equal(t, tt.want, c.Identity().Role, "roles %v", tt.roles)
	}
}

func TestPickupCode(t *testing.T) {
	code, hash, err := NewPickupCode()
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.NotEqual(t, code, hash)

	assert.True(t, VerifyPickupCode(hash, code))
	assert.False(t, VerifyPickupCode(hash, "000000x"))
	assert.False(t, VerifyPickupCode("", code))
	assert.False(t, VerifyPickupCode(hash, ""))
}
