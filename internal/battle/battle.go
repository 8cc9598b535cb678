// Package battle defines the Battle aggregate: one simulation instance's
// lifecycle state layered on top of internal/simulator (spec.md §3
// "Battle"). A Battle knows about wall-clock bookkeeping, idle tracking,
// and finalization; it has no opinion on scheduling cadence or timeout
// policy — that is internal/manager's job, grounded on the teacher's
// Game/Hub split (bormisov1-spaceship-online-game/server/game.go).
package battle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Christ139/battle-server/internal/model"
	"github.com/Christ139/battle-server/internal/simulator"
)

// ErrEnded is returned by any mutating operation on a battle that has
// already concluded (spec.md §7 "BattleEnded").
var ErrEnded = errors.New("battle has ended")

// Stats are the running aggregates a battle accumulates across ticks,
// surfaced in status queries and used to drive observability counters.
type Stats struct {
	TicksRun       uint64
	WeaponsFired   uint64
	DamageDealt    float64
	UnitsDestroyed uint64
}

// Results is the terminal snapshot produced by Finalize (spec.md §4.9
// "Termination detection").
type Results struct {
	DurationMS float64
	TotalTicks uint64
	Survivors  []int64
	Casualties []int64
	Victor     int64
	HasVictor  bool
	Reason     string
	Units      []model.Unit
}

// Battle is one isolated combat instance with its own units and tick
// stream (GLOSSARY). All mutating methods take an explicit mutex so
// ingress operations serialize against Step the way spec.md §5 requires
// in a multi-threaded design.
type Battle struct {
	mu sync.Mutex

	ID       string
	SystemID string

	sim *simulator.Simulator

	Tick             uint64
	StartTime        float64
	LastTickTime     float64
	LastDamageTime   float64
	LastTimeoutCheck float64

	Idle                bool
	NextWeaponReadyTime float64
	HasNextWeaponReady  bool

	Stats Stats

	Ended   bool
	Results *Results
}

// New constructs a Battle, normalizing and randomizing the starting unit
// set via internal/simulator.New (spec.md §3 "Lifecycle", §4.9 "Start").
func New(id, systemID string, records []model.UnitRecord, wallNow float64, seed int64) (*Battle, error) {
	sim, err := simulator.New(records, wallNow, seed)
	if err != nil {
		return nil, fmt.Errorf("battle %s: %w", id, err)
	}
	return &Battle{
		ID:               id,
		SystemID:         systemID,
		sim:              sim,
		StartTime:        wallNow,
		LastTickTime:     wallNow,
		LastDamageTime:   wallNow,
		LastTimeoutCheck: wallNow,
	}, nil
}

// Step advances the battle by dt = wallNow - LastTickTime seconds (spec.md
// §4.9 "for each non-idle, non-ended battle invoke step"). It is the
// caller's (manager's) job never to call Step on an idle, not-yet-ready
// battle or on an ended one; Step itself still guards against the latter.
func (b *Battle) Step(wallNow float64) (simulator.Delta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero simulator.Delta
	if b.Ended {
		return zero, fmt.Errorf("battle %s: %w", b.ID, ErrEnded)
	}

	dt := wallNow - b.LastTickTime
	if dt < 0 {
		dt = 0
	}

	delta := b.sim.Step(dt, wallNow)

	b.Tick++
	b.LastTickTime = wallNow
	b.Stats.TicksRun++
	b.Stats.WeaponsFired += uint64(len(delta.WeaponsFired))
	b.Stats.UnitsDestroyed += uint64(len(delta.Destroyed))
	b.Stats.DamageDealt += delta.DamageDealt
	if len(delta.Damaged) > 0 || len(delta.Destroyed) > 0 {
		b.LastDamageTime = wallNow
	}

	b.Idle = delta.IsIdle
	b.NextWeaponReadyTime, b.HasNextWeaponReady = b.sim.NextWeaponReadyTime()

	return delta, nil
}

// AddUnits inserts reinforcements and forces the battle awake (spec.md
// §4.8 "add_unit", §4.9 "Reinforcements").
func (b *Battle) AddUnits(records []model.UnitRecord, wallNow float64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Ended {
		return 0, fmt.Errorf("battle %s: %w", b.ID, ErrEnded)
	}

	added := 0
	for _, rec := range records {
		if err := b.sim.AddUnit(rec, wallNow); err != nil {
			return added, fmt.Errorf("battle %s: %w", b.ID, err)
		}
		added++
	}
	b.wake()
	return added, nil
}

// UpdatePositions overwrites positions for the listed units (spec.md
// §4.8 "update_positions") and wakes the battle.
func (b *Battle) UpdatePositions(updates []simulator.PositionUpdate) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Ended {
		return 0, fmt.Errorf("battle %s: %w", b.ID, ErrEnded)
	}
	n := b.sim.UpdatePositions(updates)
	b.wake()
	return n, nil
}

// UpdateSinglePosition is the convenience single-unit variant (spec.md
// §4.8 "update_single_position").
func (b *Battle) UpdateSinglePosition(id int64, x, y, z float64, clearTarget bool) (bool, error) {
	n, err := b.UpdatePositions([]simulator.PositionUpdate{{ID: id, X: x, Y: y, Z: z, ClearTarget: clearTarget}})
	return n == 1, err
}

// ForceRetarget clears every unit's target and wakes the battle (spec.md
// §4.8 "force_retarget").
func (b *Battle) ForceRetarget() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Ended {
		return fmt.Errorf("battle %s: %w", b.ID, ErrEnded)
	}
	b.sim.ForceRetarget()
	b.wake()
	return nil
}

// wake clears idle state so the manager's scheduler re-evaluates this
// battle on its very next pass (spec.md §4.9 "All external mutations must
// wake a battle from idle mode"). Caller must hold b.mu.
func (b *Battle) wake() {
	b.Idle = false
}

// IsIdle reports whether the battle is currently in idle mode.
func (b *Battle) IsIdle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Idle
}

// IsEnded reports whether the battle has concluded.
func (b *Battle) IsEnded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Ended
}

// ShouldWake reports whether an idle battle's next weapon is ready as of
// wallNow (spec.md §4.9 "If wall_now >= next_weapon_ready_time, wake and
// run a step").
func (b *Battle) ShouldWake(wallNow float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.Idle {
		return true
	}
	return b.HasNextWeaponReady && wallNow >= b.NextWeaponReadyTime
}

// DurationMS returns the battle's elapsed wall duration in milliseconds.
func (b *Battle) DurationMS(wallNow float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return (wallNow - b.StartTime) * 1000
}

// ElapsedSince returns wallNow - StartTime in seconds, for the manager's
// max-duration timeout check (spec.md §4.9).
func (b *Battle) ElapsedSince(wallNow float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return wallNow - b.StartTime
}

// TimeSinceLastDamage returns wallNow - LastDamageTime in seconds, for the
// manager's stalemate timeout check (spec.md §4.9).
func (b *Battle) TimeSinceLastDamage(wallNow float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return wallNow - b.LastDamageTime
}

// CurrentTick returns the battle's tick counter, for event publication.
func (b *Battle) CurrentTick() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Tick
}

// IsBattleEnded reports the simulator-level termination condition (spec.md
// §4.7 "is_battle_ended"), independent of whether Finalize has run yet.
func (b *Battle) IsBattleEnded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sim.IsBattleEnded()
}

// Finalize performs end-of-battle bookkeeping exactly once (spec.md §4.9
// "Finalization MUST be idempotent"). A second call is a no-op and
// returns the same Results as the first.
func (b *Battle) Finalize(wallNow float64, reason string) *Results {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Ended {
		return b.Results
	}

	units := b.sim.Results()
	var survivors, casualties []int64
	for _, u := range units {
		if u.Alive {
			survivors = append(survivors, u.ID)
		} else {
			casualties = append(casualties, u.ID)
		}
	}

	factions := b.sim.ActiveFactions()
	var victor int64
	hasVictor := len(factions) == 1
	if hasVictor {
		victor = factions[0]
	}

	b.Results = &Results{
		DurationMS: (wallNow - b.StartTime) * 1000,
		TotalTicks: b.Tick,
		Survivors:  survivors,
		Casualties: casualties,
		Victor:     victor,
		HasVictor:  hasVictor,
		Reason:     reason,
		Units:      units,
	}
	b.Ended = true
	return b.Results
}

// StatusSnapshot is the read-only view returned by a status query (spec.md
// §6 "status").
type StatusSnapshot struct {
	BattleID   string
	SystemID   string
	Tick       uint64
	DurationMS float64
	Ended      bool
	UnitCount  int
	Factions   []int64
	IsIdle     bool
	Stats      Stats
	Results    *Results
}

// Snapshot builds a StatusSnapshot of the battle's current state.
func (b *Battle) Snapshot(wallNow float64) StatusSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return StatusSnapshot{
		BattleID:   b.ID,
		SystemID:   b.SystemID,
		Tick:       b.Tick,
		DurationMS: (wallNow - b.StartTime) * 1000,
		Ended:      b.Ended,
		UnitCount:  b.sim.UnitCount(),
		Factions:   b.sim.ActiveFactions(),
		IsIdle:     b.Idle,
		Stats:      b.Stats,
		Results:    b.Results,
	}
}
