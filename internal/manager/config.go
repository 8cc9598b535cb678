package manager

import "time"

// Config holds the manager's scheduling and timeout cadences (spec.md
// §6 "Tick rate" / "Idle check period" / "Timeout check period" / "Max
// battle duration" / "Stalemate window" / "Post-end retention"). The
// spec's hard-coded constants are made configurable here for
// operability, matching SPEC_FULL.md §1.1's config.Load() deviation —
// DefaultConfig's values are exactly the spec's named constants.
type Config struct {
	TickInterval         time.Duration
	IdleCheckInterval    time.Duration
	TimeoutCheckInterval time.Duration
	MaxBattleDuration    time.Duration
	StalemateWindow      time.Duration
	RetentionWindow      time.Duration
	EventBufferSize      int
	RNGSeed              int64 // 0 means "derive a fresh seed per battle from crypto/rand"
}

// DefaultConfig returns the spec's named cadences unchanged.
func DefaultConfig() Config {
	return Config{
		TickInterval:         50 * time.Millisecond,
		IdleCheckInterval:    500 * time.Millisecond,
		TimeoutCheckInterval: 10 * time.Second,
		MaxBattleDuration:    30 * time.Minute,
		StalemateWindow:      5 * time.Minute,
		RetentionWindow:      60 * time.Second,
		EventBufferSize:      64,
	}
}
