// Package simulator implements the deterministic per-tick battle engine
// described in spec.md §4: spatial indexing, target acquisition, movement,
// weapon firing and damage resolution, shield regen, and delta assembly.
// A Simulator owns exactly one battle's units; it knows nothing about
// wall-clock scheduling, idle policy, or timeouts — that is internal/manager's
// job, operating on top of the contract this package exposes.
package simulator

import (
	"fmt"
	"math"
	"sort"

	"github.com/Christ139/battle-server/internal/model"
	"github.com/Christ139/battle-server/internal/simrng"
	"github.com/Christ139/battle-server/internal/spatial"
)

// Simulator holds one battle's unit table, spatial index, and RNG.
type Simulator struct {
	table        *table
	grid         *spatial.Grid
	rng          *simrng.Source
	factionAlive map[int64]int
	scratch      []int // reused Nearby() result buffer, avoids per-call alloc
}

// New constructs a Simulator from a set of ingress unit records, normalizing
// and staggering weapon cooldowns as it goes (spec.md §3 "Lifecycle",
// §4.1). seed makes the last_fired stagger reproducible across runs with
// identical input — see spec.md §9 "RNG seeding".
func New(records []model.UnitRecord, wallNow float64, seed int64) (*Simulator, error) {
	s := &Simulator{
		table:        newTable(len(records)),
		grid:         spatial.New(),
		rng:          simrng.New(seed),
		factionAlive: make(map[int64]int, 4),
	}
	for _, rec := range records {
		if err := s.addRecord(rec, wallNow); err != nil {
			return nil, err
		}
	}
	s.rebuildGrid()
	s.acquireTargets()
	return s, nil
}

func (s *Simulator) addRecord(rec model.UnitRecord, wallNow float64) error {
	u, err := model.FromRecord(rec)
	if err != nil {
		return err
	}
	model.Normalize(&u, wallNow, s.rng)
	if !s.table.add(u) {
		return fmt.Errorf("duplicate unit id %d: %w", u.ID, model.ErrInvalidPayload)
	}
	if u.IsAlive() {
		s.factionAlive[u.FactionID]++
	}
	return nil
}

// AddUnit normalizes and inserts a single reinforcement unit (spec.md
// §4.8 "add_unit"). Callers (internal/manager) are responsible for waking
// the owning battle out of idle afterward.
func (s *Simulator) AddUnit(rec model.UnitRecord, wallNow float64) error {
	if err := s.addRecord(rec, wallNow); err != nil {
		return err
	}
	s.rebuildGrid()
	return nil
}

// Step advances the simulation by dt seconds as of wallNow, running the
// fixed phase order spec.md §5 makes observable: spatial rebuild ->
// targeting -> movement -> firing+damage -> shield regen -> delta
// assembly.
func (s *Simulator) Step(dt float64, wallNow float64) Delta {
	s.rebuildGrid()
	s.acquireTargets()

	moved := s.applyMovement(dt)
	fired, damaged, destroyed, dealt := s.applyWeaponsAndDamage(dt, wallNow)
	s.regenShields(dt)

	delta := Delta{
		Moved:        moved,
		Damaged:      damaged,
		Destroyed:    destroyed,
		WeaponsFired: fired,
		DamageDealt:  dealt,
	}

	// With no alive unit holding a target, no weapon can fire no matter how
	// ready it is, so readiness only matters while something is engaged.
	engaged := false
	for i := range s.table.units {
		if u := &s.table.units[i]; u.IsAlive() && u.HasTarget {
			engaged = true
			break
		}
	}
	next, hasNext := s.NextWeaponReadyTime()
	delta.IsIdle = delta.empty() && (!hasNext || !engaged || next > wallNow)
	return delta
}

func (s *Simulator) rebuildGrid() {
	s.grid.Reset()
	for i := range s.table.units {
		u := &s.table.units[i]
		if u.IsAlive() {
			s.grid.Insert(u.PosX, u.PosY, u.PosZ, i)
		}
	}
}

func (s *Simulator) regenShields(dt float64) {
	for i := range s.table.units {
		u := &s.table.units[i]
		if !u.IsAlive() || u.ShieldRegen <= 0 {
			continue
		}
		u.Shield += u.ShieldRegen * dt
		if u.Shield > u.MaxShield {
			u.Shield = u.MaxShield
		}
	}
}

func (s *Simulator) onUnitDestroyed(u *model.Unit) {
	s.factionAlive[u.FactionID]--
}

// ActiveFactions returns the sorted set of faction ids with >= 1 alive
// unit (spec.md §4.7).
func (s *Simulator) ActiveFactions() []int64 {
	out := make([]int64, 0, len(s.factionAlive))
	for f, n := range s.factionAlive {
		if n > 0 {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsBattleEnded reports whether at most one faction still has a live unit
// (spec.md §4.7).
func (s *Simulator) IsBattleEnded() bool {
	return len(s.ActiveFactions()) <= 1
}

// NextWeaponReadyTime returns the minimum of last_fired+cooldown over all
// alive, armed units' weapons with cooldown > 0 (spec.md §4.7). The second
// return value is false when no such weapon exists.
func (s *Simulator) NextWeaponReadyTime() (float64, bool) {
	best := math.Inf(1)
	found := false
	for i := range s.table.units {
		u := &s.table.units[i]
		if !u.IsAlive() || !u.HasWeapons {
			continue
		}
		for _, w := range u.Weapons {
			if w.Cooldown <= 0 {
				continue
			}
			ready := w.LastFired + w.Cooldown
			if ready < best {
				best = ready
				found = true
			}
		}
	}
	return best, found
}

// PositionUpdate is one entry of an update_positions request (spec.md §4.8).
type PositionUpdate struct {
	ID          int64
	X, Y, Z     float64
	ClearTarget bool
}

// UpdatePositions overwrites positions for the listed units, optionally
// clearing their target, and returns the count actually updated (spec.md
// §4.8). Unknown ids are silently skipped.
func (s *Simulator) UpdatePositions(updates []PositionUpdate) int {
	count := 0
	for _, upd := range updates {
		u, ok := s.table.byID(upd.ID)
		if !ok {
			continue
		}
		u.PosX, u.PosY, u.PosZ = upd.X, upd.Y, upd.Z
		if upd.ClearTarget {
			u.ClearTarget()
		}
		count++
	}
	if count > 0 {
		s.rebuildGrid()
	}
	return count
}

// UpdateSinglePosition is the convenience single-unit variant of
// UpdatePositions (spec.md §4.8).
func (s *Simulator) UpdateSinglePosition(id int64, x, y, z float64, clearTarget bool) bool {
	return s.UpdatePositions([]PositionUpdate{{ID: id, X: x, Y: y, Z: z, ClearTarget: clearTarget}}) == 1
}

// ForceRetarget clears every unit's target_id and reacquires immediately
// (spec.md §4.3, §4.8).
func (s *Simulator) ForceRetarget() {
	s.forceRetarget()
}

// PositionSnapshot is one row of a UnitPositions() debug dump.
type PositionSnapshot struct {
	ID      int64
	X, Y, Z float64
	Alive   bool
}

// UnitPositions returns every unit's current position, for debugging/state
// dumps (spec.md §4.7).
func (s *Simulator) UnitPositions() []PositionSnapshot {
	out := make([]PositionSnapshot, len(s.table.units))
	for i := range s.table.units {
		u := &s.table.units[i]
		out[i] = PositionSnapshot{ID: u.ID, X: u.PosX, Y: u.PosY, Z: u.PosZ, Alive: u.Alive}
	}
	return out
}

// Results returns the final unit records after termination (spec.md
// §4.7). Order matches insertion order (original construction followed by
// any reinforcements), not unit id — carried from original_source so
// client-side replays line up with the start/reinforcements payload order
// (see SPEC_FULL.md §4).
func (s *Simulator) Results() []model.Unit {
	out := make([]model.Unit, len(s.table.units))
	copy(out, s.table.units)
	return out
}

// UnitCount returns the number of units ever added to this battle (alive
// or dead).
func (s *Simulator) UnitCount() int {
	return s.table.len()
}
