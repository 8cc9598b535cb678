package battle

import (
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

func unitRecord(id, factionID int64, hp float64, x, y, z float64, weapons ...model.WeaponRecord) model.UnitRecord {
	return model.UnitRecord{
		ID:        id,
		FactionID: factionID,
		MaxHP:     hp,
		HP:        hp,
		PosX:      x,
		PosY:      y,
		PosZ:      z,
		MaxSpeed:  50,
		Weapons:   weapons,
	}
}

func TestNewRejectsInvalidRecord(t *testing.T) {
	bad := model.UnitRecord{ID: 0, MaxHP: 100}
	_, err := New("b1", "sys1", []model.UnitRecord{bad}, 0, 1)
	if err == nil {
		t.Fatal("expected error constructing battle from invalid unit record")
	}
}

func TestStepAdvancesTickAndStats(t *testing.T) {
	w := weapon("laser", 1000, 1, 100, 0, 0)
	u1 := unitRecord(1, 1, 100, 0, 0, 0, w)
	u2 := unitRecord(2, 2, 5, 10, 0, 0)

	b, err := New("b1", "sys1", []model.UnitRecord{u1, u2}, -100, 42)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	delta, err := b.Step(0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if b.Tick != 1 {
		t.Fatalf("expected tick 1, got %d", b.Tick)
	}
	if len(delta.Destroyed) != 1 {
		t.Fatalf("expected unit 2 destroyed, got %+v", delta.Destroyed)
	}
	if b.Stats.UnitsDestroyed != 1 {
		t.Fatalf("expected UnitsDestroyed=1, got %d", b.Stats.UnitsDestroyed)
	}
	if b.Stats.WeaponsFired == 0 {
		t.Fatal("expected WeaponsFired > 0")
	}
}

func TestStepOnEndedBattleErrors(t *testing.T) {
	u1 := unitRecord(1, 1, 100, 0, 0, 0)

	b, err := New("b1", "sys1", []model.UnitRecord{u1}, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.Finalize(10, "server_shutdown")

	if _, err := b.Step(20); err == nil {
		t.Fatal("expected error stepping an ended battle")
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	u1 := unitRecord(1, 1, 100, 0, 0, 0)
	u2 := unitRecord(2, 2, 100, 10, 0, 0)

	b, err := New("b1", "sys1", []model.UnitRecord{u1, u2}, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := b.Finalize(100, "max_duration_exceeded_30m")
	second := b.Finalize(200, "different_reason_should_be_ignored")

	if first != second {
		t.Fatal("expected Finalize to return the same Results pointer on a second call")
	}
	if second.Reason != "max_duration_exceeded_30m" {
		t.Fatalf("expected original reason preserved, got %q", second.Reason)
	}
}

func TestFinalizePicksUniqueVictor(t *testing.T) {
	w := weapon("laser", 1000, 1, 100, 0, 0)
	u1 := unitRecord(1, 1, 100, 0, 0, 0, w)
	u2 := unitRecord(2, 2, 5, 10, 0, 0)

	b, err := New("b1", "sys1", []model.UnitRecord{u1, u2}, -100, 42)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b.Step(0)
	results := b.Finalize(1, "all_enemies_destroyed")

	if !results.HasVictor || results.Victor != 1 {
		t.Fatalf("expected victor faction 1, got %+v", results)
	}
	if len(results.Casualties) != 1 || results.Casualties[0] != 2 {
		t.Fatalf("expected casualties=[2], got %+v", results.Casualties)
	}
	if len(results.Survivors) != 1 || results.Survivors[0] != 1 {
		t.Fatalf("expected survivors=[1], got %+v", results.Survivors)
	}
}

func TestAddUnitsWakesBattle(t *testing.T) {
	u1 := unitRecord(1, 1, 100, 0, 0, 0)

	b, err := New("b1", "sys1", []model.UnitRecord{u1}, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.Idle = true

	u2 := unitRecord(2, 2, 100, 10, 0, 0)
	added, err := b.AddUnits([]model.UnitRecord{u2}, 1)
	if err != nil {
		t.Fatalf("AddUnits: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 unit added, got %d", added)
	}
	if b.IsIdle() {
		t.Fatal("expected battle to wake after reinforcements")
	}
}

func TestForceRetargetWakesBattle(t *testing.T) {
	u1 := unitRecord(1, 1, 100, 0, 0, 0)

	b, err := New("b1", "sys1", []model.UnitRecord{u1}, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.Idle = true

	if err := b.ForceRetarget(); err != nil {
		t.Fatalf("ForceRetarget: %v", err)
	}
	if b.IsIdle() {
		t.Fatal("expected battle to wake after force_retarget")
	}
}

func TestIsBattleEndedSingleFaction(t *testing.T) {
	u1 := unitRecord(1, 1, 100, 0, 0, 0)
	u2 := unitRecord(2, 1, 100, 10, 0, 0)

	b, err := New("b1", "sys1", []model.UnitRecord{u1, u2}, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !b.IsBattleEnded() {
		t.Fatal("single-faction battle should report ended")
	}
}
