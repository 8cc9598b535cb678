// Package config loads the battle server's runtime configuration from the
// environment, falling back to spec.md's named constants. The
// getEnv/getEnvInt/getEnvDuration accessor pattern is grounded on
// OzanYDZ51-SpaceGame/backend/internal/config's Config/Load (the corpus's
// own env-var config idiom; the teacher itself is flag-based, so this
// enriches from elsewhere in the pack rather than departing from it).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-tunable setting the battle server needs.
// Every duration field defaults to spec.md's named cadence; operators may
// override for testing or for deployments that need a different balance
// of responsiveness versus scheduler load.
type Config struct {
	ListenAddr string
	SQLitePath string

	AdminPassword string
	JWTSecret     string // read from JWT_SECRET but not passed on: the admin server always loads (or generates and persists) its secret via internal/store

	RNGSeed int64 // 0 means "derive a fresh seed per battle from crypto/rand"

	TickInterval         time.Duration
	IdleCheckInterval    time.Duration
	TimeoutCheckInterval time.Duration
	MaxBattleDuration    time.Duration
	StalemateWindow      time.Duration
	RetentionWindow      time.Duration

	EventBufferSize int
}

// Load reads configuration from the environment, applying spec.md's
// defaults for anything unset.
func Load() *Config {
	return &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		SQLitePath:    getEnv("SQLITE_PATH", "battleserver.db"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		RNGSeed:       int64(getEnvInt("RNG_SEED", 0)),

		TickInterval:         getEnvDuration("TICK_INTERVAL", 50*time.Millisecond),
		IdleCheckInterval:    getEnvDuration("IDLE_CHECK_INTERVAL", 500*time.Millisecond),
		TimeoutCheckInterval: getEnvDuration("TIMEOUT_CHECK_INTERVAL", 10*time.Second),
		MaxBattleDuration:    getEnvDuration("MAX_BATTLE_DURATION", 30*time.Minute),
		StalemateWindow:      getEnvDuration("STALEMATE_WINDOW", 5*time.Minute),
		RetentionWindow:      getEnvDuration("RETENTION_WINDOW", 60*time.Second),

		EventBufferSize: getEnvInt("EVENT_BUFFER_SIZE", 64),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
