package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	j := NewJWTManager("secret", time.Hour)
	token, expiresAt, err := j.GenerateToken("admin", "admin")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := j.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Username)
	require.Equal(t, "admin", claims.Role)
	require.NotEmpty(t, claims.ID)

	_, err = NewJWTManager("other", time.Hour).ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	j := NewJWTManager("secret", time.Minute)
	token, _, err := j.GenerateToken("admin", "admin")
	require.NoError(t, err)

	j.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = j.ValidateToken(token)
	require.Error(t, err)
}

func TestMemoryBlacklist(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	b := NewMemoryBlacklist(16, time.Hour)
	b.now = func() time.Time { return now }

	revoked, err := b.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, b.Revoke(ctx, "tok", 10*time.Minute))
	revoked, err = b.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.True(t, revoked)

	now = now.Add(11 * time.Minute)
	revoked, err = b.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.False(t, revoked)
}
