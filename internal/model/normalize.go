package model

import "strings"

// stationKeywords are checked case-insensitively against unit_type to
// infer classification when neither is_ship nor is_station is supplied
// (spec.md §4.1 step 3).
var stationKeywords = []string{"station", "outpost", "platform"}

// FromRecord converts an ingress UnitRecord into a Unit, applying only the
// conversions that require the source record's optional-field shape
// (pointer vs. zero value). It does not normalize — call Normalize
// afterward. Returns a wrapped ErrInvalidPayload if the record fails
// Validate.
func FromRecord(r UnitRecord) (Unit, error) {
	if err := r.Validate(); err != nil {
		return Unit{}, err
	}

	u := Unit{
		ID:          r.ID,
		FactionID:   r.FactionID,
		PlayerID:    r.PlayerID,
		UnitType:    r.UnitType,
		HP:          r.HP,
		MaxHP:       r.MaxHP,
		Shield:      r.Shield,
		MaxShield:   r.MaxShield,
		Armor:       r.Armor,
		ShieldRegen: r.ShieldRegen,
		PosX:        r.PosX,
		PosY:        r.PosY,
		PosZ:        r.PosZ,
		VelX:        r.VelX,
		VelY:        r.VelY,
		VelZ:        r.VelZ,
		MaxSpeed:    r.MaxSpeed,
		MaxWeaponRange: r.MaxWeaponRange,
		DamageDealt: r.DamageDealt,
		DamageTaken: r.DamageTaken,
	}
	if r.IsShip != nil {
		u.IsShip = *r.IsShip
	}
	if r.IsStation != nil {
		u.IsStation = *r.IsStation
	}
	if r.TargetID != nil {
		u.SetTarget(*r.TargetID)
	}
	if r.Alive != nil {
		u.Alive = *r.Alive
	} else {
		u.Alive = u.HP > 0
	}

	u.Weapons = make([]Weapon, len(r.Weapons))
	for i, wr := range r.Weapons {
		u.Weapons[i] = weaponFromRecord(wr)
	}
	return u, nil
}

// RandomSource is the minimal interface Normalize needs from
// internal/simrng.Source, kept narrow so model does not import simrng
// (avoiding an import cycle and keeping model dependency-free).
type RandomSource interface {
	Float64() float64
}

// Normalize makes an externally-supplied Unit internally consistent
// (spec.md §4.1). It is total — there are no error conditions — and
// idempotent: calling it twice on an already-normalized unit at the same
// wallNow is a no-op (spec.md §8 "Normalization applied to the same
// record twice is a no-op").
func Normalize(u *Unit, wallNow float64, rng RandomSource) {
	// Step 1: has_weapons.
	if !u.HasWeapons && len(u.Weapons) > 0 {
		u.HasWeapons = true
	}

	// Step 2: max_weapon_range.
	if u.MaxWeaponRange <= 0 {
		var maxRange float64
		for _, w := range u.Weapons {
			if w.MaxRange > maxRange {
				maxRange = w.MaxRange
			}
		}
		u.MaxWeaponRange = maxRange
	}

	// Step 3: ship/station classification.
	if !u.IsShip && !u.IsStation {
		if classifyStation(u.UnitType) {
			u.IsStation = true
		} else {
			u.IsShip = true
		}
	}

	// Step 4: stagger last_fired for freshly-loaded weapons. Idempotent
	// because a weapon that already drew a stagger has LastFired != 0,
	// except when the draw lands exactly on 0 (wallNow == r*Cooldown); a
	// weapon with Cooldown <= 0 is left alone on every pass.
	for i := range u.Weapons {
		w := &u.Weapons[i]
		if w.LastFired == 0 && w.Cooldown > 0 {
			r := rng.Float64()
			w.LastFired = wallNow - r*w.Cooldown
		}
	}

	// Step 5: alive flag.
	u.Alive = u.HP > 0
}

func classifyStation(unitType string) bool {
	lower := strings.ToLower(unitType)
	for _, kw := range stationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// normalizeTag lower-cases and trims a weapon tag once at construction
// time so the impact_time_ms category lookup is not repeated per shot
// (carried from original_source/battle-core; see SPEC_FULL.md §4).
func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
