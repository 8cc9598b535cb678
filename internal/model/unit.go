package model

// Unit is a combat entity (spec.md §3 "Unit"). It is the mutable record a
// Simulator owns one copy of per alive-or-dead combatant; the simulator's
// unit table holds these by dense index, keyed externally by ID.
type Unit struct {
	ID       int64
	FactionID int64
	PlayerID int64 // 0 means unset/no owning player
	UnitType string

	IsShip    bool
	IsStation bool

	HP, MaxHP         float64
	Shield, MaxShield float64
	Armor             float64
	ShieldRegen       float64 // per second

	PosX, PosY, PosZ float64
	VelX, VelY, VelZ float64
	MaxSpeed         float64

	Weapons        []Weapon
	HasWeapons     bool
	MaxWeaponRange float64

	HasTarget bool
	TargetID  int64

	Alive bool

	DamageDealt float64
	DamageTaken float64
}

// IsAlive reports hp > 0, which must hold iff Alive is true (spec.md §8
// invariant "alive == (hp > 0)").
func (u *Unit) IsAlive() bool {
	return u.HP > 0
}

// MaxOptimalRange returns the maximum optimal_range across the unit's
// weapons, used by movement (spec.md §4.4) to decide when to stop closing.
func (u *Unit) MaxOptimalRange() float64 {
	var best float64
	for _, w := range u.Weapons {
		if w.OptimalRange > best {
			best = w.OptimalRange
		}
	}
	return best
}

// ClearTarget drops the unit's current target, if any.
func (u *Unit) ClearTarget() {
	u.HasTarget = false
	u.TargetID = 0
}

// SetTarget assigns a new target id.
func (u *Unit) SetTarget(id int64) {
	u.HasTarget = true
	u.TargetID = id
}

// UnitRecord is the ingress wire shape for a Unit (spec.md §6 "UnitRecord").
// Pointer fields distinguish "absent" from "explicit false/zero" where the
// normalization algorithm needs to tell the two apart.
type UnitRecord struct {
	ID        int64   `json:"id"`
	FactionID int64   `json:"faction_id"`
	PlayerID  int64   `json:"player_id,omitempty"`
	UnitType  string  `json:"unit_type,omitempty"`
	IsShip    *bool   `json:"is_ship,omitempty"`
	IsStation *bool   `json:"is_station,omitempty"`

	MaxHP       float64 `json:"max_hp"`
	HP          float64 `json:"hp"`
	MaxShield   float64 `json:"max_shield"`
	Shield      float64 `json:"shield"`
	Armor       float64 `json:"armor"`
	ShieldRegen float64 `json:"shield_regen"`

	PosX float64 `json:"pos_x"`
	PosY float64 `json:"pos_y"`
	PosZ float64 `json:"pos_z"`
	VelX float64 `json:"vel_x"`
	VelY float64 `json:"vel_y"`
	VelZ float64 `json:"vel_z"`

	MaxSpeed float64 `json:"max_speed"`

	Weapons        []WeaponRecord `json:"weapons"`
	MaxWeaponRange float64        `json:"max_weapon_range,omitempty"`

	TargetID *int64 `json:"target_id,omitempty"`
	Alive    *bool  `json:"alive,omitempty"`

	DamageDealt float64 `json:"damage_dealt,omitempty"`
	DamageTaken float64 `json:"damage_taken,omitempty"`
}

// Validate checks the mandatory fields of an ingress UnitRecord, returning
// a wrapped ErrInvalidPayload describing the first problem found.
func (r UnitRecord) Validate() error {
	if r.ID == 0 {
		return invalidf("unit id is required")
	}
	if r.MaxHP <= 0 {
		return invalidf("unit %d: max_hp must be > 0", r.ID)
	}
	for i, w := range r.Weapons {
		if w.FireRate < 0 {
			return invalidf("unit %d weapon %d: fire_rate must be >= 0", r.ID, i)
		}
	}
	return nil
}
