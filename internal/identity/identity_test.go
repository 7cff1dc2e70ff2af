package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inErrors "github.com/ametori/storefront/internal/errors"
	"github.com/ametori/storefront/internal/identity"
)

func TestOwnerKinds(t *testing.T) {
	userId := uuid.New()
	user := identity.User(userId)
	assert.True(t, user.IsUser())
	assert.False(t, user.IsSession())
	assert.Equal(t, "user:"+userId.String(), user.String())

	session := identity.Session(identity.NewSessionToken())
	assert.True(t, session.IsSession())
	assert.False(t, session.IsUser())
}

func TestSessionDigestIsStableAndOpaque(t *testing.T) {
	token := identity.NewSessionToken()
	first := identity.Session(token).SessionDigest()
	second := identity.Session(token).SessionDigest()
	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
	assert.NotContains(t, string(first), token)

	other := identity.Session(identity.NewSessionToken()).SessionDigest()
	assert.NotEqual(t, first, other)
}

func TestOwnerContextRoundTrip(t *testing.T) {
	_, err := identity.OwnerFromContext(context.Background())
	require.ErrorIs(t, err, inErrors.ErrEmptySubject)

	userId := uuid.New()
	c := identity.AttachOwnerToContext(context.Background(), identity.User(userId))
	owner, err := identity.OwnerFromContext(c)
	require.NoError(t, err)
	assert.Equal(t, userId, owner.UserID)

	got, err := identity.UserFromContext(c)
	require.NoError(t, err)
	assert.Equal(t, userId, got)
}

func TestUserFromContextRejectsGuests(t *testing.T) {
	c := identity.AttachOwnerToContext(
		context.Background(),
		identity.Session(identity.NewSessionToken()),
	)
	_, err := identity.UserFromContext(c)
	require.ErrorIs(t, err, inErrors.ErrEmptyAuth)
}

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyToken(t *testing.T) {
	const secret = "test-secret"
	const audience = "audience-user"
	userId := uuid.New()
	claims := jwt.RegisteredClaims{
		Subject:   userId.String(),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	t.Run("valid token", func(t *testing.T) {
		jwtToken, err := identity.VerifyToken(
			context.Background(),
			signToken(t, secret, claims),
			secret,
			audience,
		)
		require.NoError(t, err)
		got, err := identity.UserIDFromToken(jwtToken)
		require.NoError(t, err)
		assert.Equal(t, userId, got)
	})

	t.Run("wrong audience", func(t *testing.T) {
		_, err := identity.VerifyToken(
			context.Background(),
			signToken(t, secret, claims),
			secret,
			"audience-admin",
		)
		require.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := identity.VerifyToken(
			context.Background(),
			signToken(t, "other-secret", claims),
			secret,
			audience,
		)
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := claims
		expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		_, err := identity.VerifyToken(
			context.Background(),
			signToken(t, secret, expired),
			secret,
			audience,
		)
		require.Error(t, err)
	})

	t.Run("missing expiry", func(t *testing.T) {
		missing := claims
		missing.ExpiresAt = nil
		_, err := identity.VerifyToken(
			context.Background(),
			signToken(t, secret, missing),
			secret,
			audience,
		)
		require.Error(t, err)
	})
}
