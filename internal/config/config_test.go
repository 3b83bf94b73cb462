package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "INR", cfg.Currency)
	assert.Equal(t, "sqlite", cfg.OutboxDriver)
	assert.Nil(t, cfg.Brokers())

	tax, err := cfg.Tax()
	require.NoError(t, err)
	assert.Equal(t, "0.18", tax.String())
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "placeholder")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := Load("does-not-exist.env")
	assert.Error(t, err)
}

func TestLoad_RejectsBadTaxRate(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TAX_RATE", "eighteen")

	_, err := Load("does-not-exist.env")
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownOutboxDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("OUTBOX_DRIVER", "mysql")

	_, err := Load("does-not-exist.env")
	assert.Error(t, err)
}

func TestBrokers_Splits(t *testing.T) {
	cfg := &Config{KafkaBrokers: "k1:9092, k2:9092,,"}
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
}
