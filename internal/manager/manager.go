// Package manager implements the battle manager layer described in
// spec.md §4.9 and §6: it owns the set of live battles, runs the single
// periodic scheduler tick, applies idle and timeout policy, and exposes
// the ingress operations (start, reinforcements, update_positions,
// update_position, force_retarget, status, stop, active_battles).
//
// The scheduler loop is grounded on the teacher's Game.Run ticker
// pattern (bormisov1-spaceship-online-game/server/game.go): one
// time.Ticker, one goroutine, a stop channel for shutdown. Everything
// the loop touches (battles, eventbus, store, metrics) is safe to call
// concurrently with the ingress methods below, which run on whatever
// goroutine the transport layer calls them from.
package manager

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Christ139/battle-server/internal/battle"
	"github.com/Christ139/battle-server/internal/eventbus"
	"github.com/Christ139/battle-server/internal/model"
	"github.com/Christ139/battle-server/internal/observability"
	"github.com/Christ139/battle-server/internal/simulator"
	"github.com/Christ139/battle-server/internal/store"
)

// battleEntry tracks a battle plus the scheduler's per-battle bookkeeping
// that does not belong on the battle itself (idle/timeout check cadence,
// post-end purge deadline).
type battleEntry struct {
	b *battle.Battle

	lastIdleCheck    float64
	lastTimeoutCheck float64

	hasPurgeAt bool
	purgeAt    float64
}

// Manager owns every live battle and the scheduler that steps them.
type Manager struct {
	cfg     Config
	bus     *eventbus.Bus
	store   *store.Store
	metrics *observability.Collector

	now func() float64

	mu      sync.RWMutex
	battles map[string]*battleEntry

	startOnce sync.Once
	started   bool
	stopCh    chan struct{}
	stopped   chan struct{}
}

// New constructs a Manager. bus, st, and metrics may be nil; every method
// degrades gracefully (publish/record becomes a no-op) when its
// collaborator is absent, which keeps the manager testable in isolation.
func New(cfg Config, bus *eventbus.Bus, st *store.Store, metrics *observability.Collector) *Manager {
	return &Manager{
		cfg:     cfg,
		bus:     bus,
		store:   st,
		metrics: metrics,
		now:     func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
		battles: make(map[string]*battleEntry),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run starts the scheduler's background tick loop. Safe to call at most
// once; subsequent calls are no-ops.
func (m *Manager) Run() {
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.started = true
		m.mu.Unlock()
		go m.loop()
	})
}

func (m *Manager) loop() {
	defer close(m.stopped)
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.tickAll()
		case <-m.stopCh:
			return
		}
	}
}

// Shutdown ends every live battle with the server_shutdown reason (spec.md
// §5 "Shutdown") and stops the scheduler loop if it was started.
func (m *Manager) Shutdown() {
	wallNow := m.now()

	m.mu.RLock()
	ids := make([]string, 0, len(m.battles))
	for id, e := range m.battles {
		if !e.b.IsEnded() {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.endBattle(id, wallNow, "server_shutdown")
	}

	m.mu.RLock()
	started := m.started
	m.mu.RUnlock()
	if started {
		close(m.stopCh)
		<-m.stopped
	}
}

// Start registers a new battle (spec.md §4.9 "Start", §6 "start"); the
// scheduler steps it from its next pass on. Start does not itself start the
// scheduler: battles only advance once Run has been called (or tickAll is
// driven directly). seedOverride, if non-nil, takes
// precedence over the manager's configured RNG seed (spec.md §9 "RNG
// seeding: an implementation should accept an optional seed in the start
// payload or a process-wide seed").
func (m *Manager) Start(battleID, systemID string, units []model.UnitRecord, wallNow float64, seedOverride *int64) error {
	m.mu.RLock()
	_, exists := m.battles[battleID]
	m.mu.RUnlock()
	if exists {
		return fmt.Errorf("battle %s: %w", battleID, ErrBattleAlreadyExists)
	}

	seed := m.nextSeed()
	if seedOverride != nil {
		seed = *seedOverride
	}

	b, err := battle.New(battleID, systemID, units, wallNow, seed)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.battles[battleID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("battle %s: %w", battleID, ErrBattleAlreadyExists)
	}
	m.battles[battleID] = &battleEntry{
		b:                b,
		lastIdleCheck:    wallNow,
		lastTimeoutCheck: wallNow,
	}
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.RecordLifecycleEvent(battleID, systemID, "started", "", nil); err != nil {
			log.Printf("manager: audit log started event failed for battle %s: %v", battleID, err)
		}
	}

	snap := b.Snapshot(wallNow)
	m.publish(systemID, eventbus.Envelope{
		Type:     EventStarted,
		BattleID: battleID,
		SystemID: systemID,
		JSON: StartedEvent{
			BattleID:  battleID,
			SystemID:  systemID,
			UnitCount: snap.UnitCount,
			Factions:  snap.Factions,
		},
	})
	return nil
}

// Reinforcements adds units to a live battle and wakes it (spec.md §4.9
// "Reinforcements", §6 "reinforcements").
func (m *Manager) Reinforcements(battleID string, units []model.UnitRecord, wallNow float64) (int, error) {
	b, err := m.lookup(battleID)
	if err != nil {
		return 0, err
	}

	added, err := b.AddUnits(units, wallNow)
	if err != nil {
		if errors.Is(err, battle.ErrEnded) {
			return added, fmt.Errorf("battle %s: %w", battleID, ErrBattleEnded)
		}
		return added, err
	}

	if m.store != nil {
		if err := m.store.RecordLifecycleEvent(battleID, b.SystemID, "reinforced", fmt.Sprintf("added=%d", added), nil); err != nil {
			log.Printf("manager: audit log reinforced event failed for battle %s: %v", battleID, err)
		}
	}

	joined := make([]ReinforcementUnit, 0, len(units))
	for _, u := range units {
		joined = append(joined, ReinforcementUnit{ID: u.ID, FactionID: u.FactionID, PlayerID: u.PlayerID})
	}
	m.publish(b.SystemID, eventbus.Envelope{
		Type:     EventReinforcements,
		BattleID: battleID,
		SystemID: b.SystemID,
		JSON: ReinforcementsEvent{
			BattleID:       battleID,
			SystemID:       b.SystemID,
			Reinforcements: joined,
		},
	})
	return added, nil
}

// UpdatePositions overwrites positions for the listed units and wakes the
// battle (spec.md §6 "update_positions").
func (m *Manager) UpdatePositions(battleID string, updates []simulator.PositionUpdate) (int, error) {
	b, err := m.lookup(battleID)
	if err != nil {
		return 0, err
	}
	n, err := b.UpdatePositions(updates)
	if err != nil && errors.Is(err, battle.ErrEnded) {
		return n, fmt.Errorf("battle %s: %w", battleID, ErrBattleEnded)
	}
	return n, err
}

// UpdateSinglePosition is the convenience single-unit variant (spec.md §6
// "update_position").
func (m *Manager) UpdateSinglePosition(battleID string, id int64, x, y, z float64, clearTarget bool) (bool, error) {
	b, err := m.lookup(battleID)
	if err != nil {
		return false, err
	}
	ok, err := b.UpdateSinglePosition(id, x, y, z, clearTarget)
	if err != nil && errors.Is(err, battle.ErrEnded) {
		return ok, fmt.Errorf("battle %s: %w", battleID, ErrBattleEnded)
	}
	return ok, err
}

// ForceRetarget clears every unit's target and wakes the battle (spec.md §6
// "force_retarget").
func (m *Manager) ForceRetarget(battleID string) error {
	b, err := m.lookup(battleID)
	if err != nil {
		return err
	}
	if err := b.ForceRetarget(); err != nil {
		if errors.Is(err, battle.ErrEnded) {
			return fmt.Errorf("battle %s: %w", battleID, ErrBattleEnded)
		}
		return err
	}
	return nil
}

// Status returns a single battle's snapshot (spec.md §6 "status").
func (m *Manager) Status(battleID string, wallNow float64) (battle.StatusSnapshot, error) {
	b, err := m.lookup(battleID)
	if err != nil {
		return battle.StatusSnapshot{}, err
	}
	return b.Snapshot(wallNow), nil
}

// ActiveBattles returns a snapshot of every battle the manager still holds,
// live or pending purge (spec.md §6 "active_battles").
func (m *Manager) ActiveBattles(wallNow float64) []battle.StatusSnapshot {
	m.mu.RLock()
	entries := make([]*battleEntry, 0, len(m.battles))
	for _, e := range m.battles {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]battle.StatusSnapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.b.Snapshot(wallNow))
	}
	return out
}

// Stop ends a live battle early with the operator_stop reason (spec.md §6
// "stop"). Stopping an already-ended battle is a no-op.
func (m *Manager) Stop(battleID string, wallNow float64) error {
	b, err := m.lookup(battleID)
	if err != nil {
		return err
	}
	if b.IsEnded() {
		return nil
	}
	m.endBattle(battleID, wallNow, "operator_stop")
	return nil
}

// publish forwards to the bus if one is configured; a manager built
// without a bus (as in unit tests that only exercise ingress logic)
// simply drops every event.
func (m *Manager) publish(systemID string, env eventbus.Envelope) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(systemID, env)
}

func (m *Manager) lookup(battleID string) (*battle.Battle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.battles[battleID]
	if !ok {
		return nil, fmt.Errorf("battle %s: %w", battleID, ErrBattleNotFound)
	}
	return e.b, nil
}

func (m *Manager) nextSeed() int64 {
	if m.cfg.RNGSeed != 0 {
		return m.cfg.RNGSeed
	}
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

// tickAll is the scheduler's single periodic pass (spec.md §4.9): purge
// battles past their retention deadline, then for every live battle check
// timeout policy, check idle policy, and step if due.
func (m *Manager) tickAll() {
	wallNow := m.now()
	m.purgeExpired(wallNow)

	m.mu.RLock()
	entries := make([]*battleEntry, 0, len(m.battles))
	for _, e := range m.battles {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	active, idle := 0, 0
	for _, e := range entries {
		b := e.b
		if b.IsEnded() {
			continue
		}

		if wallNow-e.lastTimeoutCheck >= m.cfg.TimeoutCheckInterval.Seconds() {
			e.lastTimeoutCheck = wallNow
			if reason, hit := m.checkTimeout(b, wallNow); hit {
				m.endBattle(b.ID, wallNow, reason)
				continue
			}
		}

		if b.IsIdle() {
			if wallNow-e.lastIdleCheck < m.cfg.IdleCheckInterval.Seconds() {
				idle++
				continue
			}
			e.lastIdleCheck = wallNow
			if !b.ShouldWake(wallNow) {
				idle++
				continue
			}
		}

		started := time.Now()
		delta, err := m.stepSafely(b, wallNow)
		m.metrics.ObserveTick(time.Since(started).Seconds())
		if err != nil {
			log.Printf("manager: battle %s step failed: %v", b.ID, err)
			m.endBattle(b.ID, wallNow, "step_failure")
			continue
		}

		m.metrics.RecordDelta(len(delta.WeaponsFired), len(delta.Destroyed), delta.DamageDealt)
		m.publishTick(b, delta)

		if b.IsIdle() {
			idle++
		} else {
			active++
		}

		if b.IsBattleEnded() {
			m.endBattle(b.ID, wallNow, "all_enemies_destroyed")
		}
	}

	m.metrics.SetBattleCounts(active, idle)
}

// stepSafely recovers a panicking simulator.Step and converts it into a
// StepFailure-classified error so one battle's bug cannot kill the
// scheduler (SPEC_FULL.md §1.3).
func (m *Manager) stepSafely(b *battle.Battle, wallNow float64) (simulator.Delta, error) {
	var delta simulator.Delta
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("battle %s: step panicked: %v", b.ID, r)
			}
		}()
		delta, err = b.Step(wallNow)
	}()
	return delta, err
}

func (m *Manager) checkTimeout(b *battle.Battle, wallNow float64) (string, bool) {
	if maxDur := m.cfg.MaxBattleDuration; maxDur > 0 && b.ElapsedSince(wallNow) > maxDur.Seconds() {
		return fmt.Sprintf("max_duration_exceeded_%dm", int(maxDur.Minutes())), true
	}
	if window := m.cfg.StalemateWindow; window > 0 && b.TimeSinceLastDamage(wallNow) > window.Seconds() {
		return fmt.Sprintf("stalemate_no_damage_%dm", int(window.Minutes())), true
	}
	return "", false
}

func (m *Manager) endBattle(battleID string, wallNow float64, reason string) {
	m.mu.RLock()
	e, ok := m.battles[battleID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	results := e.b.Finalize(wallNow, reason)

	m.mu.Lock()
	e.hasPurgeAt = true
	e.purgeAt = wallNow + m.cfg.RetentionWindow.Seconds()
	m.mu.Unlock()

	m.metrics.RecordConcluded(reason)

	var victor *int64
	if results.HasVictor {
		v := results.Victor
		victor = &v
	}

	if m.store != nil {
		if err := m.store.RecordLifecycleEvent(battleID, e.b.SystemID, "concluded", reason, victor); err != nil {
			log.Printf("manager: audit log concluded event failed for battle %s: %v", battleID, err)
		}
	}

	m.publish(e.b.SystemID, eventbus.Envelope{
		Type:     EventConcluded,
		BattleID: battleID,
		SystemID: e.b.SystemID,
		JSON: ConcludedEvent{
			BattleID:   battleID,
			SystemID:   e.b.SystemID,
			DurationMS: results.DurationMS,
			TotalTicks: results.TotalTicks,
			Survivors:  results.Survivors,
			Casualties: results.Casualties,
			Victor:     victor,
			Reason:     reason,
		},
	})
}

func (m *Manager) publishTick(b *battle.Battle, delta simulator.Delta) {
	payload := eventbus.TickPayload{
		BattleID:     b.ID,
		SystemID:     b.SystemID,
		Tick:         b.CurrentTick(),
		Moved:        delta.Moved,
		Damaged:      delta.Damaged,
		Destroyed:    delta.Destroyed,
		WeaponsFired: delta.WeaponsFired,
	}
	encoded, err := eventbus.EncodeTick(payload)
	if err != nil {
		log.Printf("manager: encode tick for battle %s failed: %v", b.ID, err)
		return
	}
	m.publish(b.SystemID, eventbus.Envelope{
		Type:     EventTick,
		BattleID: b.ID,
		SystemID: b.SystemID,
		Binary:   encoded,
	})
}

func (m *Manager) purgeExpired(wallNow float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.battles {
		if e.hasPurgeAt && wallNow >= e.purgeAt {
			delete(m.battles, id)
		}
	}
}
