package simulator

import "github.com/Christ139/battle-server/internal/model"

// applyWeaponsAndDamage runs §4.5 for every alive, armed unit with a
// valid, in-range target: resolve each weapon's discharge in order,
// applying damage shield-then-hull, crediting the attacker, and emitting
// WeaponFired/Destroyed deltas. Shield regen (§4.6) happens separately,
// after this phase, for every alive unit.
func (s *Simulator) applyWeaponsAndDamage(dt float64, wallNow float64) ([]WeaponFired, []Damaged, []Destroyed, float64) {
	var fired []WeaponFired
	var destroyed []Destroyed
	var totalDealt float64
	lastAttacker := make(map[int64]int64)
	touched := make(map[int64]bool)
	order := make([]int64, 0)

	for i := range s.table.units {
		u := &s.table.units[i]
		if !u.IsAlive() || !u.HasWeapons || !u.HasTarget {
			continue
		}
		target, ok := s.table.byID(u.TargetID)
		if !ok || !target.IsAlive() {
			continue
		}

		dist := distance(u, target)

		for wi := range u.Weapons {
			w := &u.Weapons[wi]
			if !w.Ready(wallNow) {
				continue
			}
			if dist > w.MaxRange {
				continue
			}
			if !w.CanDamage(target.Armor) {
				continue
			}

			w.LastFired = wallNow
			fired = append(fired, WeaponFired{
				AttackerID:   u.ID,
				TargetID:     target.ID,
				WeaponTag:    w.Tag,
				ImpactTimeMS: w.ImpactTimeMS(dist),
			})

			dmg := w.DamagePerShot()
			dealt := applyDamage(target, dmg)
			u.DamageDealt += dealt
			target.DamageTaken += dealt
			totalDealt += dealt
			if dealt > 0 {
				lastAttacker[target.ID] = u.ID
				if !touched[target.ID] {
					touched[target.ID] = true
					order = append(order, target.ID)
				}
			}

			if !target.IsAlive() && target.Alive {
				target.Alive = false
				destroyed = append(destroyed, Destroyed{ID: target.ID, DestroyedBy: u.ID})
				s.onUnitDestroyed(target)
			}
			if !target.IsAlive() {
				// Further weapons this tick may still be in the loop but
				// the target is gone; nothing left to damage.
				break
			}
		}
	}

	damaged := make([]Damaged, 0, len(order))
	for _, id := range order {
		u, ok := s.table.byID(id)
		if !ok {
			continue
		}
		damaged = append(damaged, Damaged{
			ID:         id,
			HP:         u.HP,
			Shield:     u.Shield,
			AttackerID: lastAttacker[id],
		})
	}
	return fired, damaged, destroyed, totalDealt
}

// applyDamage applies dmg to target shield-then-hull (spec.md §4.5 step 3)
// and returns the amount actually absorbed/dealt. Armor gates whether a
// weapon may fire at a target at all (checked by the caller via
// Weapon.CanDamage) — it is never a flat damage reduction here. See
// DESIGN.md for the Open Question this resolves.
func applyDamage(target *model.Unit, dmg float64) float64 {
	if dmg <= 0 {
		return 0
	}
	dealt := 0.0
	if target.Shield > 0 {
		absorbed := dmg
		if absorbed > target.Shield {
			absorbed = target.Shield
		}
		target.Shield -= absorbed
		dealt += absorbed
		dmg -= absorbed
	}
	if dmg > 0 {
		hpLoss := dmg
		if hpLoss > target.HP {
			hpLoss = target.HP
		}
		target.HP -= hpLoss
		dealt += hpLoss
	}
	if target.HP < 0 {
		target.HP = 0
	}
	if target.Shield < 0 {
		target.Shield = 0
	}
	return dealt
}
