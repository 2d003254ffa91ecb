package token_test

import (
	"testing"
	"time"

	"github.com/coleapp/session-service/autherrors"
	"github.com/coleapp/session-service/token"
	"github.com/coleapp/session-service/users"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

var testAccount = &users.User{
	ID:       "user-1",
	Email:    "admin@test.com",
	Role:     users.RoleAdmin,
	TenantID: "greenfield-high",
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m, err := token.New(testSecret)
	require.NoError(t, err)

	raw, err := m.Issue(testAccount, "greenfield-high")
	require.NoError(t, err)

	claims, err := m.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "admin@test.com", claims.Email)
	require.Equal(t, users.RoleAdmin, claims.Role)
	require.Equal(t, "greenfield-high", claims.TenantID)
	require.NotEmpty(t, claims.TokenID)
	require.True(t, claims.Expiry.After(claims.IssuedAt))
}

func TestVerifyExpiredTokenIsUnauthenticated(t *testing.T) {
	issued := time.Now().Add(-48 * time.Hour)
	issuer, err := token.New(testSecret,
		token.WithExpiry(time.Hour),
		token.WithNowFunc(func() time.Time { return issued }),
	)
	require.NoError(t, err)

	raw, err := issuer.Issue(testAccount, "greenfield-high")
	require.NoError(t, err)

	verifier, err := token.New(testSecret)
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	require.Error(t, err)
	require.True(t, autherrors.IsUnauthenticated(err))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m, err := token.New(testSecret)
	require.NoError(t, err)
	raw, err := m.Issue(testAccount, "greenfield-high")
	require.NoError(t, err)

	other, err := token.New("a-different-secret")
	require.NoError(t, err)

	_, err = other.Verify(raw)
	require.Error(t, err)
	require.True(t, autherrors.IsUnauthenticated(err))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m, err := token.New(testSecret)
	require.NoError(t, err)

	_, err = m.Verify("not-a-jwt")
	require.Error(t, err)
	require.True(t, autherrors.IsUnauthenticated(err))
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := token.New("")
	require.Error(t, err)
}
