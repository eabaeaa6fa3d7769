package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainerslot/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.GRPCRequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.DBLockTimeout)
	assert.Equal(t, 2*time.Second, cfg.LockWait)
	assert.Equal(t, 25*time.Millisecond, cfg.LockPoll)
	assert.Equal(t, uint(4), cfg.RetryAttempts)
	assert.Equal(t, "first_free", cfg.TiePolicy)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_ReadsPrefixedEnv(t *testing.T) {
	t.Setenv("TRAINERSLOT_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("TRAINERSLOT_DATABASE_LOCK_TIMEOUT", "750ms")
	t.Setenv("TRAINERSLOT_BOOKING_RETRY_ATTEMPTS", "2")
	t.Setenv("TRAINERSLOT_BOOKING_TIE_POLICY", "least_loaded")
	t.Setenv("TRAINERSLOT_REDIS_ADDR", "redis:6379")
	t.Setenv("TRAINERSLOT_TRAINERS", "1:Ada, 2:Grace")
	t.Setenv("TRAINERSLOT_ROOMS", "3, 4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.GRPCAddr())
	assert.Equal(t, 750*time.Millisecond, cfg.DBLockTimeout)
	assert.Equal(t, uint(2), cfg.RetryAttempts)
	assert.Equal(t, "least_loaded", cfg.TiePolicy)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, []domain.Trainer{{ID: 1, DisplayName: "Ada"}, {ID: 2, DisplayName: "Grace"}}, cfg.Trainers)
	assert.Equal(t, []int64{3, 4}, cfg.Rooms)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"TRAINERSLOT_BOOKING_LOCK_WAIT":      "soon",
		"TRAINERSLOT_BOOKING_RETRY_ATTEMPTS": "0",
		"TRAINERSLOT_TRAINERS":               "1:Ada,1:Grace",
		"TRAINERSLOT_ROOMS":                  "3,x",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseTrainers(t *testing.T) {
	got, err := ParseTrainers("")
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, bad := range []string{"Ada", "x:Ada", "0:Ada", "3:"} {
		_, err := ParseTrainers(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRooms(t *testing.T) {
	got, err := ParseRooms(" 7,,8 ")
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, got)

	for _, bad := range []string{"0", "-2", "a"} {
		_, err := ParseRooms(bad)
		assert.Error(t, err, bad)
	}
}
