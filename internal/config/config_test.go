package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, 60*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.KonesEnabled)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.KafkaEnabled())
	assert.Empty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", " postgres://kaisurf@localhost/kaisurf ")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KONES_REWARDS_ENABLED", "false")
	t.Setenv("REQUEST_TIMEOUT", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://kaisurf@localhost/kaisurf", cfg.DatabaseURL)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.False(t, cfg.KonesEnabled)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.7/32"),
	}, cfg.TrustedProxies)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STORAGE_DRIVER": "postgres"},
		"unknown driver":       {"STORAGE_DRIVER": "sqlite"},
		"zero timeout":         {"STORAGE_DRIVER": "memory", "REQUEST_TIMEOUT": "0s"},
		"negative rate":        {"STORAGE_DRIVER": "memory", "RATE_LIMIT_RPS": "-1"},
		"bad proxy":            {"STORAGE_DRIVER": "memory", "TRUSTED_PROXIES": "10.0.0.0/33"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
