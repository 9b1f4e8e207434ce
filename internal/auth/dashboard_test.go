package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studhelper/studhelper/pkg/crypto"
	apperrors "github.com/studhelper/studhelper/pkg/errors"
)

func TestDashboardLogin(t *testing.T) {
	hash, err := crypto.HashPassword("correct horse")
	require.NoError(t, err)
	tokens, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "studhelper"})
	require.NoError(t, err)

	authenticator := NewDashboardAuthenticator(hash, tokens)

	_, _, err = authenticator.Login("wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	token, expiresAt, err := authenticator.Login("correct horse")
	require.NoError(t, err)
	require.False(t, expiresAt.IsZero())

	claims, err := tokens.Validate(token)
	require.NoError(t, err)
	require.Equal(t, ScopeDashboardRead, claims.Scope)
}

func TestDashboardLoginDisabledWithoutHash(t *testing.T) {
	tokens, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	_, _, err = NewDashboardAuthenticator("  ", tokens).Login("anything")
	require.ErrorIs(t, err, ErrDashboardDisabled)
}
