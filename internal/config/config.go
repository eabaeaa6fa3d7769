package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"trainerslot/internal/domain"
)

type Config struct {
	GRPCHost           string
	GRPCPort           int
	GRPCRequestTimeout time.Duration

	// DatabaseURL selects the Postgres registry. When empty the server keeps
	// bookings in memory for the trainers listed in Trainers.
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	DBLockTimeout     time.Duration
	Trainers          []domain.Trainer
	Rooms             []int64

	RedisAddr string

	LockTTL              time.Duration
	LockWait             time.Duration
	LockPoll             time.Duration
	RetryAttempts        uint
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	TiePolicy            string

	MetricsAddr     string
	ShutdownTimeout time.Duration
	LogLevel        string
}

func (c Config) GRPCAddr() string {
	return net.JoinHostPort(c.GRPCHost, strconv.Itoa(c.GRPCPort))
}

func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRAINERSLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.addr", "")
	v.SetDefault("grpc.request_timeout", "10s")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.lock_timeout", "2s")
	v.SetDefault("trainers", "")
	v.SetDefault("rooms", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("booking.lock_ttl", "10s")
	v.SetDefault("booking.lock_wait", "2s")
	v.SetDefault("booking.lock_poll", "25ms")
	v.SetDefault("booking.retry_attempts", 4)
	v.SetDefault("booking.retry_initial_interval", "50ms")
	v.SetDefault("booking.retry_max_interval", "1s")
	v.SetDefault("booking.tie_policy", "first_free")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("log.level", "info")

	_ = v.BindEnv("grpc.host", "TRAINERSLOT_GRPC_HOST", "GRPC_HOST")
	_ = v.BindEnv("grpc.port", "TRAINERSLOT_GRPC_PORT", "GRPC_PORT", "PORT")
	_ = v.BindEnv("grpc.addr", "TRAINERSLOT_GRPC_ADDR", "GRPC_ADDR")
	_ = v.BindEnv("grpc.request_timeout", "TRAINERSLOT_GRPC_REQUEST_TIMEOUT")
	_ = v.BindEnv("database.url", "TRAINERSLOT_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("database.max_open_conns", "TRAINERSLOT_DATABASE_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.max_idle_conns", "TRAINERSLOT_DATABASE_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.conn_max_lifetime", "TRAINERSLOT_DATABASE_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.conn_max_idle_time", "TRAINERSLOT_DATABASE_CONN_MAX_IDLE_TIME")
	_ = v.BindEnv("database.lock_timeout", "TRAINERSLOT_DATABASE_LOCK_TIMEOUT")
	_ = v.BindEnv("trainers", "TRAINERSLOT_TRAINERS")
	_ = v.BindEnv("rooms", "TRAINERSLOT_ROOMS")
	_ = v.BindEnv("redis.addr", "TRAINERSLOT_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("booking.lock_ttl", "TRAINERSLOT_BOOKING_LOCK_TTL")
	_ = v.BindEnv("booking.lock_wait", "TRAINERSLOT_BOOKING_LOCK_WAIT")
	_ = v.BindEnv("booking.lock_poll", "TRAINERSLOT_BOOKING_LOCK_POLL")
	_ = v.BindEnv("booking.retry_attempts", "TRAINERSLOT_BOOKING_RETRY_ATTEMPTS")
	_ = v.BindEnv("booking.retry_initial_interval", "TRAINERSLOT_BOOKING_RETRY_INITIAL_INTERVAL")
	_ = v.BindEnv("booking.retry_max_interval", "TRAINERSLOT_BOOKING_RETRY_MAX_INTERVAL")
	_ = v.BindEnv("booking.tie_policy", "TRAINERSLOT_BOOKING_TIE_POLICY")
	_ = v.BindEnv("metrics.addr", "TRAINERSLOT_METRICS_ADDR", "METRICS_ADDR")
	_ = v.BindEnv("shutdown.timeout", "TRAINERSLOT_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("log.level", "TRAINERSLOT_LOG_LEVEL", "LOG_LEVEL")

	var cfg Config
	durations := map[string]*time.Duration{
		"grpc.request_timeout":           &cfg.GRPCRequestTimeout,
		"database.conn_max_lifetime":     &cfg.DBConnMaxLifetime,
		"database.conn_max_idle_time":    &cfg.DBConnMaxIdleTime,
		"database.lock_timeout":          &cfg.DBLockTimeout,
		"booking.lock_ttl":               &cfg.LockTTL,
		"booking.lock_wait":              &cfg.LockWait,
		"booking.lock_poll":              &cfg.LockPoll,
		"booking.retry_initial_interval": &cfg.RetryInitialInterval,
		"booking.retry_max_interval":     &cfg.RetryMaxInterval,
		"shutdown.timeout":               &cfg.ShutdownTimeout,
	}
	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if addr := strings.TrimSpace(v.GetString("grpc.addr")); addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err == nil {
			if host != "" {
				v.Set("grpc.host", host)
			}
			if port, err := strconv.Atoi(portStr); err == nil {
				v.Set("grpc.port", port)
			}
		}
	}

	attempts := v.GetInt("booking.retry_attempts")
	if attempts < 1 {
		return Config{}, fmt.Errorf("booking.retry_attempts: must be at least 1, got %d", attempts)
	}

	trainers, err := ParseTrainers(v.GetString("trainers"))
	if err != nil {
		return Config{}, err
	}
	rooms, err := ParseRooms(v.GetString("rooms"))
	if err != nil {
		return Config{}, err
	}

	cfg.GRPCHost = strings.TrimSpace(v.GetString("grpc.host"))
	cfg.GRPCPort = v.GetInt("grpc.port")
	cfg.DatabaseURL = strings.TrimSpace(v.GetString("database.url"))
	cfg.DBMaxOpenConns = v.GetInt("database.max_open_conns")
	cfg.DBMaxIdleConns = v.GetInt("database.max_idle_conns")
	cfg.Trainers = trainers
	cfg.Rooms = rooms
	cfg.RedisAddr = strings.TrimSpace(v.GetString("redis.addr"))
	cfg.RetryAttempts = uint(attempts)
	cfg.TiePolicy = strings.TrimSpace(v.GetString("booking.tie_policy"))
	cfg.MetricsAddr = strings.TrimSpace(v.GetString("metrics.addr"))
	cfg.LogLevel = v.GetString("log.level")

	return cfg, nil
}

// ParseTrainers reads a roster written as "1:Alice,2:Bob".
func ParseTrainers(s string) ([]domain.Trainer, error) {
	var out []domain.Trainer
	seen := make(map[int64]struct{})
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		idStr, name, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("trainers: malformed entry %q", item)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("trainers: invalid id in %q", item)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("trainers: duplicate id %d", id)
		}
		seen[id] = struct{}{}
		out = append(out, domain.Trainer{ID: id, DisplayName: strings.TrimSpace(name)})
	}
	return out, nil
}

// ParseRooms reads room ids written as "1,2,3".
func ParseRooms(s string) ([]int64, error) {
	var out []int64
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("rooms: invalid id %q", item)
		}
		out = append(out, id)
	}
	return out, nil
}
