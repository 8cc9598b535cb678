package model

// Weapon categories used only to look up projectile speed for impact_time_ms
// (spec.md §4.5, §6 "Projectile-speed table"). Anything not in this table
// falls into the default "projectile" bucket.
const (
	WeaponCategoryLaser     = "laser"
	WeaponCategoryBeam      = "beam"
	WeaponCategoryMissile   = "missile"
	WeaponCategoryTorpedo   = "torpedo"
	WeaponCategoryProjectile = "projectile"
)

// projectileSpeed maps a weapon tag to its travel speed in units/second.
// laser/beam are treated as instantaneous (speed irrelevant, handled
// specially in ImpactTimeMS). Anything unrecognized, including the
// explicit "projectile" tag, uses the 800 units/s default.
var projectileSpeed = map[string]float64{
	WeaponCategoryMissile: 300,
	WeaponCategoryTorpedo: 150,
}

const defaultProjectileSpeed = 800.0

// Weapon is a firing capability owned by a Unit (spec.md §3 "Weapon").
type Weapon struct {
	Tag            string
	DPS            float64
	FireRate       float64 // hits/second
	MaxRange       float64
	OptimalRange   float64
	TargetArmorMax float64
	Cooldown       float64 // seconds between shots, == 1/FireRate
	LastFired      float64 // wall-clock seconds of last discharge
}

// DamagePerShot returns the damage dealt by a single discharge of this
// weapon: dps / fire_rate, equivalently dps * cooldown (spec.md §4.5).
func (w Weapon) DamagePerShot() float64 {
	if w.FireRate <= 0 {
		return 0
	}
	return w.DPS / w.FireRate
}

// Ready reports whether the weapon's cooldown has elapsed as of wallNow.
func (w Weapon) Ready(wallNow float64) bool {
	if w.Cooldown <= 0 {
		return true
	}
	return wallNow-w.LastFired >= w.Cooldown
}

// CanDamage reports whether this weapon is permitted to hit a target with
// the given armor value (spec.md §4.2 armor gating interpretation — see
// DESIGN.md for the flat-reduction alternative this spec rejects).
func (w Weapon) CanDamage(targetArmor float64) bool {
	return w.TargetArmorMax >= targetArmor
}

// ImpactTimeMS computes the client-visualization hint for a shot fired at
// the given distance, per the weapon-category table in spec.md §6.
func (w Weapon) ImpactTimeMS(distance float64) float64 {
	switch w.Tag {
	case WeaponCategoryLaser, WeaponCategoryBeam:
		return 0
	}
	speed, ok := projectileSpeed[w.Tag]
	if !ok {
		speed = defaultProjectileSpeed
	}
	if speed <= 0 {
		return 0
	}
	return distance / speed * 1000
}

// WeaponRecord is the ingress wire shape for a weapon (spec.md §6).
type WeaponRecord struct {
	Tag            string  `json:"tag"`
	DPS            float64 `json:"dps"`
	FireRate       float64 `json:"fire_rate"`
	MaxRange       float64 `json:"max_range"`
	OptimalRange   float64 `json:"optimal_range"`
	TargetArmorMax float64 `json:"target_armor_max"`
	Cooldown       float64 `json:"cooldown,omitempty"`
	LastFired      float64 `json:"last_fired,omitempty"`
}

func weaponFromRecord(r WeaponRecord) Weapon {
	cooldown := r.Cooldown
	if cooldown <= 0 && r.FireRate > 0 {
		cooldown = 1 / r.FireRate
	}
	return Weapon{
		Tag:            normalizeTag(r.Tag),
		DPS:            r.DPS,
		FireRate:       r.FireRate,
		MaxRange:       r.MaxRange,
		OptimalRange:   r.OptimalRange,
		TargetArmorMax: r.TargetArmorMax,
		Cooldown:       cooldown,
		LastFired:      r.LastFired,
	}
}
