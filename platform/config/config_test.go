package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"DATABASE_URL":      "postgres://localhost/quotes",
		"JWT_ACCESS_SECRET": "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, 21.0, cfg.GetDefaultTaxRate())
	assert.Equal(t, 30, cfg.GetQuoteValidityDays())
	assert.Equal(t, 3, cfg.GetGatewayMaxAttempts())
	assert.Equal(t, 3*time.Second, cfg.GetGatewayAttemptTimeout())
	assert.Equal(t, 9*time.Second, cfg.GetGatewayTotalBudget())
	assert.False(t, cfg.IsGatewayEnabled())
	assert.False(t, cfg.IsSMTPEnabled())
	assert.False(t, cfg.IsMinIOEnabled())
}

func TestFromEnvRequiresDatabaseAndSecret(t *testing.T) {
	_, err := FromEnv(lookupFrom(map[string]string{"JWT_ACCESS_SECRET": "secret"}))
	assert.Error(t, err)

	_, err = FromEnv(lookupFrom(map[string]string{"DATABASE_URL": "postgres://x"}))
	assert.Error(t, err)
}

func TestFromEnvRejectsWildcardCORSWithCredentials(t *testing.T) {
	_, err := FromEnv(lookupFrom(map[string]string{
		"DATABASE_URL":      "postgres://x",
		"JWT_ACCESS_SECRET": "secret",
		"CORS_ORIGINS":      "*",
	}))
	assert.Error(t, err)
}

func TestFromEnvRejectsOutOfRangeTaxRate(t *testing.T) {
	_, err := FromEnv(lookupFrom(map[string]string{
		"DATABASE_URL":           "postgres://x",
		"JWT_ACCESS_SECRET":      "secret",
		"QUOTE_DEFAULT_TAX_RATE": "121",
	}))
	assert.Error(t, err)
}

func TestGatewayURLIsTrimmed(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"DATABASE_URL":        "postgres://x",
		"JWT_ACCESS_SECRET":   "secret",
		"INVOICE_GATEWAY_URL": "https://gateway.example.com/api/",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example.com/api", cfg.GetGatewayURL())
	assert.True(t, cfg.IsGatewayEnabled())
}
