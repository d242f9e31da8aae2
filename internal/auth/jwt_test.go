package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_GenerateValidate(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	token, sessionID, expiresAt, err := svc.Generate("admin")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, sessionID, claims.SessionID())
	assert.Equal(t, "admin", claims.Subject)
}

func TestJWT_DistinctSessions(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	_, a, _, err := svc.Generate("admin")
	require.NoError(t, err)
	_, b, _, err := svc.Generate("admin")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestJWT_Expired(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute)
	token, _, _, err := svc.Generate("admin")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_WrongSecret(t *testing.T) {
	token, _, _, err := NewJWTService("one", time.Hour).Generate("admin")
	require.NoError(t, err)
	_, err = NewJWTService("two", time.Hour).Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_Garbage(t *testing.T) {
	_, err := NewJWTService("s", time.Hour).Validate("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
