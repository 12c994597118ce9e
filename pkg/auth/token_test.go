package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanberrios/storefront-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:          "test-secret",
		Issuer:          "storefront-backend-test",
		AccessTokenTTL:  time.Hour,
		ClockSkewLeeway: 30 * time.Second,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	signed, err := MintAccessToken(cfg, now, AccessTokenPayload{
		Subject: "ops@example.com",
		Role:    RoleAdmin,
	})
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := ParseAccessToken(cfg, signed)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	_, err := MintAccessToken(cfg, now, AccessTokenPayload{Role: RoleAdmin})
	assert.Error(t, err, "missing subject should be rejected")

	_, err = MintAccessToken(cfg, now, AccessTokenPayload{Subject: "ops@example.com", Role: Role("customer")})
	assert.Error(t, err, "unknown role should be rejected")

	noSecret := cfg
	noSecret.Secret = ""
	_, err = MintAccessToken(noSecret, now, AccessTokenPayload{Subject: "ops@example.com", Role: RoleAdmin})
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	issued := time.Now().UTC().Add(-2 * time.Hour)

	signed, err := MintAccessToken(cfg, issued, AccessTokenPayload{
		Subject: "ops@example.com",
		Role:    RoleOperator,
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, signed)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	signed, err := MintAccessToken(cfg, now, AccessTokenPayload{
		Subject: "ops@example.com",
		Role:    RoleAdmin,
	})
	require.NoError(t, err)

	other := cfg
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, signed)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsTamperedSignature(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	signed, err := MintAccessToken(cfg, now, AccessTokenPayload{
		Subject: "ops@example.com",
		Role:    RoleAdmin,
	})
	require.NoError(t, err)

	other := cfg
	other.Secret = "different-secret"
	_, err = ParseAccessToken(other, signed)
	assert.Error(t, err)
}
