package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

func TestJWT_AccessTokenRoundTrip(t *testing.T) {
	manager := NewJWT("test-secret", 15*time.Minute, 720*time.Hour)
	userID := uuid.New()

	tokenString, err := manager.GenerateAccessToken(userID, model.RoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := manager.ParseAccessToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, 5*time.Second)
}

func TestJWT_RefreshTokenRoundTrip(t *testing.T) {
	manager := NewJWT("test-secret", 15*time.Minute, 720*time.Hour)
	userID := uuid.New()

	tokenString, jti, err := manager.GenerateRefreshToken(userID)
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	gotID, gotJTI, err := manager.ParseRefreshToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, jti, gotJTI)
}

func TestJWT_TokenTypeMismatch(t *testing.T) {
	manager := NewJWT("test-secret", 15*time.Minute, 720*time.Hour)
	userID := uuid.New()

	access, err := manager.GenerateAccessToken(userID, model.RoleStudent)
	require.NoError(t, err)
	refresh, _, err := manager.GenerateRefreshToken(userID)
	require.NoError(t, err)

	_, _, err = manager.ParseRefreshToken(access)
	assert.Error(t, err)

	_, err = manager.ParseAccessToken(refresh)
	assert.Error(t, err)
}

func TestJWT_WrongSecretRejected(t *testing.T) {
	manager := NewJWT("test-secret", 15*time.Minute, 720*time.Hour)
	other := NewJWT("other-secret", 15*time.Minute, 720*time.Hour)

	tokenString, err := manager.GenerateAccessToken(uuid.New(), model.RoleStudent)
	require.NoError(t, err)

	_, err = other.ParseAccessToken(tokenString)
	assert.Error(t, err)
}

func TestJWT_ExpiredAccessTokenRejected(t *testing.T) {
	manager := NewJWT("test-secret", -time.Minute, 720*time.Hour)

	tokenString, err := manager.GenerateAccessToken(uuid.New(), model.RoleStudent)
	require.NoError(t, err)

	_, err = manager.ParseAccessToken(tokenString)
	assert.Error(t, err)
}

func TestJWT_UnknownRoleClaimRejected(t *testing.T) {
	manager := NewJWT("test-secret", 15*time.Minute, 720*time.Hour)

	tokenString, err := manager.GenerateAccessToken(uuid.New(), model.Role("root"))
	require.NoError(t, err)

	_, err = manager.ParseAccessToken(tokenString)
	assert.Error(t, err)
}
