package simulator

import (
	"math"
	"testing"

	"github.com/Christ139/battle-server/internal/model"
)

func weapon(tag string, dps, fireRate, maxRange, optimalRange, targetArmorMax float64) model.WeaponRecord {
	return model.WeaponRecord{
		Tag:            tag,
		DPS:            dps,
		FireRate:       fireRate,
		MaxRange:       maxRange,
		OptimalRange:   optimalRange,
		TargetArmorMax: targetArmorMax,
	}
}

func unitRecord(id, factionID int64, hp, shield, armor float64, x, y, z float64, weapons ...model.WeaponRecord) model.UnitRecord {
	return model.UnitRecord{
		ID:          id,
		FactionID:   factionID,
		MaxHP:       hp,
		HP:          hp,
		MaxShield:   shield,
		Shield:      shield,
		Armor:       armor,
		PosX:        x,
		PosY:        y,
		PosZ:        z,
		MaxSpeed:    50,
		Weapons:     weapons,
	}
}

// Scenario 1: spec.md §8 "Single shot resolution".
func TestSingleShotResolution(t *testing.T) {
	w := weapon("laser", 10, 1, 100, 50, 0)
	u1 := unitRecord(1, 1, 100, 0, 0, 0, 0, 0, w)
	u2 := unitRecord(2, 2, 50, 0, 0, 10, 0, 0)

	sim, err := New([]model.UnitRecord{u1, u2}, -1, 42)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	delta := sim.Step(0.05, 0)

	if len(delta.WeaponsFired) != 1 {
		t.Fatalf("expected 1 weapons_fired, got %d", len(delta.WeaponsFired))
	}
	fired := delta.WeaponsFired[0]
	if fired.AttackerID != 1 || fired.TargetID != 2 {
		t.Fatalf("unexpected fired record: %+v", fired)
	}
	if fired.ImpactTimeMS != 0 {
		t.Fatalf("laser should be instantaneous, got %v", fired.ImpactTimeMS)
	}

	if len(delta.Damaged) != 1 {
		t.Fatalf("expected 1 damaged, got %d", len(delta.Damaged))
	}
	dmg := delta.Damaged[0]
	if dmg.ID != 2 || dmg.HP != 40 || dmg.Shield != 0 || dmg.AttackerID != 1 {
		t.Fatalf("unexpected damaged record: %+v", dmg)
	}
}

// Scenario 2: spec.md §8 "Shield absorption".
func TestShieldAbsorption(t *testing.T) {
	w := weapon("laser", 10, 1, 100, 50, 0)
	u1 := unitRecord(1, 1, 100, 0, 0, 0, 0, 0, w)
	u2 := unitRecord(2, 2, 50, 5, 0, 10, 0, 0)
	u2.MaxShield = 5

	sim, err := New([]model.UnitRecord{u1, u2}, -1, 42)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	delta := sim.Step(0.05, 0)

	if len(delta.Damaged) != 1 {
		t.Fatalf("expected 1 damaged, got %d", len(delta.Damaged))
	}
	dmg := delta.Damaged[0]
	if dmg.HP != 45 || dmg.Shield != 0 {
		t.Fatalf("expected hp=45 shield=0 (shield absorbs 5 of the 10 damage, remainder to hull), got hp=%v shield=%v", dmg.HP, dmg.Shield)
	}
}

// Scenario 3: spec.md §8 "Armor gating".
func TestArmorGating(t *testing.T) {
	w := weapon("laser", 10, 1, 100, 50, 0)
	u1 := unitRecord(1, 1, 100, 0, 0, 0, 0, 0, w)
	u2 := unitRecord(2, 2, 50, 0, 10, 10, 0, 0)

	sim, err := New([]model.UnitRecord{u1, u2}, -1, 42)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	delta := sim.Step(0.05, 0)

	if len(delta.WeaponsFired) != 0 {
		t.Fatalf("expected no weapons fired against undamageable armor, got %d", len(delta.WeaponsFired))
	}
	if len(delta.Damaged) != 0 {
		t.Fatalf("expected no damage, got %d", len(delta.Damaged))
	}

	u, ok := sim.table.byID(1)
	if !ok {
		t.Fatal("unit 1 missing")
	}
	if u.HasTarget {
		t.Fatalf("unit 1 should have no valid target, got target_id=%d", u.TargetID)
	}
}

// Scenario 4: spec.md §8 "Staggered firing on load".
func TestStaggeredFiringDistribution(t *testing.T) {
	const n = 1000
	const cooldown = 2.0
	records := make([]model.UnitRecord, 0, n)
	for i := 0; i < n; i++ {
		w := weapon("laser", 5, 1/cooldown, 10, 5, 0)
		records = append(records, unitRecord(int64(i+1), 1, 100, 0, 0, float64(i)*1000, 0, 0, w))
	}

	sim, err := New(records, 1000, 7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const buckets = 10
	counts := make([]int, buckets)
	for i := range sim.table.units {
		lf := sim.table.units[i].Weapons[0].LastFired
		// lf is in [wallNow-cooldown, wallNow) == [998, 1000).
		frac := (lf - (1000 - cooldown)) / cooldown
		b := int(frac * buckets)
		if b < 0 {
			b = 0
		}
		if b >= buckets {
			b = buckets - 1
		}
		counts[b]++
	}

	mean := float64(n) / float64(buckets)
	for b, c := range counts {
		if float64(c) > mean*1.5 {
			t.Fatalf("bucket %d has %d entries, exceeding 1.5x mean %v (not uniform)", b, c, mean)
		}
	}
}

// Scenario 5 (partial, simulator-level): an idle battle's is_idle flips
// true with no actors in range, and a forced position update followed by
// ForceRetarget produces weapons fire on the very next step.
func TestIdleThenWake(t *testing.T) {
	w := weapon("laser", 10, 1, 50, 25, 0)
	u1 := unitRecord(1, 1, 100, 0, 0, 0, 0, 0, w)
	u2 := unitRecord(2, 2, 100, 0, 0, 1000, 0, 0, w)

	sim, err := New([]model.UnitRecord{u1, u2}, -100, 42)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	delta := sim.Step(0.05, 0)
	if !delta.IsIdle {
		t.Fatalf("expected idle tick with no units in range, got %+v", delta)
	}

	sim.UpdateSinglePosition(2, 10, 0, 0, true)
	sim.ForceRetarget()

	delta = sim.Step(0.05, 0.2)
	if len(delta.WeaponsFired) == 0 {
		t.Fatalf("expected weapons fired after units moved into range")
	}
}

// Scenario: station adjacent to an armed ship must be targeted over a
// farther ship of the same faction as the station — regression test for
// the distilled station-targeting bug (spec.md §4.3(b), §8).
func TestStationNotMaskedByFartherShip(t *testing.T) {
	w := weapon("laser", 10, 1, 200, 100, 0)
	attacker := unitRecord(1, 1, 100, 0, 0, 0, 0, 0, w)

	station := unitRecord(2, 2, 500, 0, 0, 10, 0, 0)
	station.UnitType = "station"

	farShip := unitRecord(3, 2, 100, 0, 0, 150, 0, 0, w)

	sim, err := New([]model.UnitRecord{attacker, station, farShip}, 0, 42)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	u, ok := sim.table.byID(1)
	if !ok {
		t.Fatal("attacker missing")
	}
	if !u.HasTarget || u.TargetID != 2 {
		t.Fatalf("expected attacker to target the closer station (id 2), got target_id=%d has_target=%v", u.TargetID, u.HasTarget)
	}
}

// spec.md §8 "A unit in destroyed for tick T does not appear alive in
// any moved/damaged/weapons_fired of tick T+1 or later."
func TestDestroyedUnitStopsActing(t *testing.T) {
	w := weapon("laser", 1000, 1, 100, 0, 0)
	u1 := unitRecord(1, 1, 100, 0, 0, 0, 0, 0, w)
	u2 := unitRecord(2, 2, 5, 0, 0, 10, 0, 0, w)

	sim, err := New([]model.UnitRecord{u1, u2}, -100, 42)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := sim.Step(0.05, 0)
	foundDestroyed := false
	for _, d := range first.Destroyed {
		if d.ID == 2 {
			foundDestroyed = true
		}
	}
	if !foundDestroyed {
		t.Fatalf("expected unit 2 destroyed in first tick, got %+v", first.Destroyed)
	}

	second := sim.Step(0.05, 1)
	for _, m := range second.Moved {
		if m.ID == 2 {
			t.Fatalf("destroyed unit 2 should not move afterward")
		}
	}
	for _, d := range second.Damaged {
		if d.ID == 2 {
			t.Fatalf("destroyed unit 2 should not take damage afterward")
		}
	}
	for _, f := range second.WeaponsFired {
		if f.AttackerID == 2 {
			t.Fatalf("destroyed unit 2 should not fire afterward")
		}
	}
}

func TestIsBattleEndedSingleFaction(t *testing.T) {
	u1 := unitRecord(1, 1, 100, 0, 0, 0, 0, 0)
	u2 := unitRecord(2, 1, 100, 0, 0, 10, 0, 0)

	sim, err := New([]model.UnitRecord{u1, u2}, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !sim.IsBattleEnded() {
		t.Fatal("single-faction battle must report ended")
	}
}

func TestShieldRegeneration(t *testing.T) {
	u := unitRecord(1, 1, 100, 0, 0, 0, 0, 0)
	u.MaxShield = 50
	u.Shield = 0
	u.ShieldRegen = 10

	sim, err := New([]model.UnitRecord{u}, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sim.Step(1.0, 1)
	got, ok := sim.table.byID(1)
	if !ok {
		t.Fatal("unit missing")
	}
	if math.Abs(got.Shield-10) > 1e-9 {
		t.Fatalf("expected shield=10 after 1s regen at 10/s, got %v", got.Shield)
	}
}

func TestResultsPreserveInsertionOrder(t *testing.T) {
	u1 := unitRecord(5, 1, 100, 0, 0, 0, 0, 0)
	u2 := unitRecord(1, 1, 100, 0, 0, 10, 0, 0)
	u3 := unitRecord(3, 1, 100, 0, 0, 20, 0, 0)

	sim, err := New([]model.UnitRecord{u1, u2, u3}, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results := sim.Results()
	if len(results) != 3 || results[0].ID != 5 || results[1].ID != 1 || results[2].ID != 3 {
		t.Fatalf("expected insertion order [5,1,3], got %+v", resultIDs(results))
	}
}

func resultIDs(units []model.Unit) []int64 {
	out := make([]int64, len(units))
	for i, u := range units {
		out[i] = u.ID
	}
	return out
}

func TestDuplicateUnitIDRejected(t *testing.T) {
	u1 := unitRecord(1, 1, 100, 0, 0, 0, 0, 0)
	u2 := unitRecord(1, 2, 100, 0, 0, 10, 0, 0)

	_, err := New([]model.UnitRecord{u1, u2}, 0, 1)
	if err == nil {
		t.Fatal("expected error for duplicate unit id")
	}
}
