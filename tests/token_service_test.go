package tests

import (
	"testing"
	"time"

	"github.com/adscope-labs/spotgrid/app/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTokenService(t *testing.T, accessTTL time.Duration) services.TokenService {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	svc, err := services.NewTokenService(
		accessTTL, 24*time.Hour,
		"spotgrid", "spotgrid-admin",
		false, "", "",
		"test-secret-key-at-least-32-characters",
		"admin", string(hash),
	)
	require.NoError(t, err)
	return svc
}

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := newTokenService(t, 15*time.Minute)

	access, refresh, err := svc.GenerateAdminTokens("admin")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	claims, err := svc.ValidateAdminToken(access)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.AdminName)
	assert.Equal(t, "access", claims.TokenType)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))

	refreshClaims, err := svc.ValidateAdminToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refreshClaims.TokenType)
}

func TestTokenServiceRefresh(t *testing.T) {
	svc := newTokenService(t, 15*time.Minute)

	_, refresh, err := svc.GenerateAdminTokens("admin")
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshAdminToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)

	claims, err := svc.ValidateAdminToken(newAccess)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.TokenType)

	t.Run("AccessTokenCannotRefresh", func(t *testing.T) {
		access, _, err := svc.GenerateAdminTokens("admin")
		require.NoError(t, err)

		_, _, err = svc.RefreshAdminToken(access)
		assert.Error(t, err)
	})
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := newTokenService(t, 15*time.Minute)

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.ValidateAdminToken("not.a.token")
		assert.ErrorIs(t, err, services.ErrTokenInvalid)
	})

	t.Run("WrongKey", func(t *testing.T) {
		other := newTokenService(t, 15*time.Minute)
		// Same claims signed elsewhere still fail here when keys differ.
		foreign, err := services.NewTokenService(
			15*time.Minute, 24*time.Hour,
			"spotgrid", "spotgrid-admin",
			false, "", "",
			"a-completely-different-32-char-secret!!",
			"admin", "",
		)
		require.NoError(t, err)

		access, _, err := foreign.GenerateAdminTokens("admin")
		require.NoError(t, err)

		_, err = other.ValidateAdminToken(access)
		assert.ErrorIs(t, err, services.ErrTokenInvalid)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := newTokenService(t, -time.Minute)
		access, _, err := expired.GenerateAdminTokens("admin")
		require.NoError(t, err)

		_, err = expired.ValidateAdminToken(access)
		assert.ErrorIs(t, err, services.ErrTokenExpired)
	})
}

func TestTokenServiceVerifyAdminCredentials(t *testing.T) {
	svc := newTokenService(t, 15*time.Minute)

	assert.NoError(t, svc.VerifyAdminCredentials("admin", "correct-horse"))
	assert.ErrorIs(t, svc.VerifyAdminCredentials("admin", "wrong"), services.ErrInvalidCredentials)
	assert.ErrorIs(t, svc.VerifyAdminCredentials("intruder", "correct-horse"), services.ErrInvalidCredentials)
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := services.NewTokenService(
		15*time.Minute, 24*time.Hour,
		"spotgrid", "spotgrid-admin",
		false, "", "", "",
		"admin", "",
	)
	assert.Error(t, err)
}
