package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "storefront-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "storefront", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.False(t, cfg.Redis.Enabled())

		assert.True(t, cfg.Bridge.PushEnabled)
		assert.False(t, cfg.Bridge.PollEnabled)
		assert.Equal(t, 2.0, cfg.Bridge.BackoffBase)
		assert.Equal(t, 60*time.Second, cfg.Bridge.BackoffCap)
		assert.Equal(t, 30*time.Second, cfg.Bridge.PollInterval)
		assert.Equal(t, []string{"PENDING", "CONFIRMED", "PROCESSING", "SHIPPED", "OUT_FOR_DELIVERY"}, cfg.Bridge.PolledStatuses)
		assert.Equal(t, "log", cfg.Bridge.PersistFailurePolicy)
		assert.Equal(t, 3, cfg.Bridge.PersistRetryAttempts)
		assert.Equal(t, SinkModeLocal, cfg.Bridge.SinkMode)
		assert.Equal(t, time.Duration(0), cfg.HTTP.WriteTimeout)
	})

	t.Run("loads values from environment variables with STOREFRONT prefix", func(t *testing.T) {
		t.Setenv("STOREFRONT_APP_PORT", "9000")
		t.Setenv("STOREFRONT_DATABASE_HOST", "testdb.local")
		t.Setenv("STOREFRONT_DATABASE_PORT", "5433")
		t.Setenv("STOREFRONT_BRIDGE_PUSH_ENABLED", "false")
		t.Setenv("STOREFRONT_BRIDGE_POLL_ENABLED", "true")
		t.Setenv("STOREFRONT_BRIDGE_POLL_INTERVAL", "45s")
		t.Setenv("STOREFRONT_BRIDGE_POLLED_STATUSES", "pending, shipped")
		t.Setenv("STOREFRONT_BRIDGE_PERSIST_FAILURE_POLICY", "RETRY")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.False(t, cfg.Bridge.PushEnabled)
		assert.True(t, cfg.Bridge.PollEnabled)
		assert.Equal(t, 45*time.Second, cfg.Bridge.PollInterval)
		assert.Equal(t, []string{"PENDING", "SHIPPED"}, cfg.Bridge.PolledStatuses)
		assert.Equal(t, "retry", cfg.Bridge.PersistFailurePolicy)
	})

	t.Run("does not reject push and poll together", func(t *testing.T) {
		t.Setenv("STOREFRONT_BRIDGE_POLL_ENABLED", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Bridge.PushEnabled)
		assert.True(t, cfg.Bridge.PollEnabled)
	})
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "idle conns cannot exceed open conns",
			env:     map[string]string{"STOREFRONT_DATABASE_MAX_OPEN_CONNS": "10", "STOREFRONT_DATABASE_MAX_IDLE_CONNS": "20"},
			wantErr: "cannot exceed",
		},
		{
			name:    "unknown database driver",
			env:     map[string]string{"STOREFRONT_DATABASE_DRIVER": "mysql"},
			wantErr: "database.driver",
		},
		{
			name:    "backoff base must exceed one",
			env:     map[string]string{"STOREFRONT_BRIDGE_BACKOFF_BASE": "1"},
			wantErr: "bridge.backoff_base",
		},
		{
			name:    "backoff cap below base",
			env:     map[string]string{"STOREFRONT_BRIDGE_BACKOFF_CAP": "1s"},
			wantErr: "bridge.backoff_cap",
		},
		{
			name: "poll interval must be positive",
			env: map[string]string{
				"STOREFRONT_BRIDGE_POLL_ENABLED":  "true",
				"STOREFRONT_BRIDGE_POLL_INTERVAL": "0s",
			},
			wantErr: "bridge.poll_interval",
		},
		{
			name:    "unknown persist policy",
			env:     map[string]string{"STOREFRONT_BRIDGE_PERSIST_FAILURE_POLICY": "panic"},
			wantErr: "bridge.persist_failure_policy",
		},
		{
			name:    "redis sink without redis",
			env:     map[string]string{"STOREFRONT_BRIDGE_SINK_MODE": "redis"},
			wantErr: "requires redis.host",
		},
		{
			name:    "unknown sink mode",
			env:     map[string]string{"STOREFRONT_BRIDGE_SINK_MODE": "kafka"},
			wantErr: "bridge.sink_mode",
		},
		{
			name:    "sampling ratio out of range",
			env:     map[string]string{"STOREFRONT_TELEMETRY_SAMPLING_RATIO": "1.5"},
			wantErr: "telemetry.sampling_ratio",
		},
		{
			name: "production requires database password",
			env: map[string]string{
				"STOREFRONT_APP_ENV":          "production",
				"STOREFRONT_DATABASE_SSLMODE": "require",
			},
			wantErr: "database.password is required in production",
		},
		{
			name: "production forbids sslmode disable",
			env: map[string]string{
				"STOREFRONT_APP_ENV":           "production",
				"STOREFRONT_DATABASE_PASSWORD": "secret",
			},
			wantErr: "database.sslmode cannot be 'disable' in production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_RedisSinkMode(t *testing.T) {
	t.Setenv("STOREFRONT_BRIDGE_SINK_MODE", "redis")
	t.Setenv("STOREFRONT_REDIS_HOST", "cache.local")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
	assert.True(t, cfg.Redis.Enabled())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
