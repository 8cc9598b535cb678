package simulator

import (
	"math"

	"github.com/Christ139/battle-server/internal/model"
	"github.com/Christ139/battle-server/internal/spatial"
)

// targetValid reports whether holder's current target_id still points at
// a legal target (spec.md §4.3 "Validity of an existing target_id").
func (s *Simulator) targetValid(holder *model.Unit) bool {
	if !holder.HasTarget {
		return false
	}
	target, ok := s.table.byID(holder.TargetID)
	if !ok || !target.IsAlive() {
		return false
	}
	if target.FactionID == holder.FactionID {
		return false
	}
	if distance(holder, target) > holder.MaxWeaponRange {
		return false
	}
	return canDamageSome(holder, target.Armor)
}

func canDamageSome(holder *model.Unit, targetArmor float64) bool {
	for _, w := range holder.Weapons {
		if w.CanDamage(targetArmor) {
			return true
		}
	}
	return false
}

func distance(a, b *model.Unit) float64 {
	dx := a.PosX - b.PosX
	dy := a.PosY - b.PosY
	dz := a.PosZ - b.PosZ
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// acquireTargets runs target acquisition for every armed, alive unit
// lacking a valid target (spec.md §4.3). Units without weapons are never
// assigned a target — they have nothing to fire and movement never closes
// range without one, matching spec.md §4.4.
func (s *Simulator) acquireTargets() {
	for i := range s.table.units {
		u := &s.table.units[i]
		if !u.IsAlive() || !u.HasWeapons {
			continue
		}
		if s.targetValid(u) {
			continue
		}
		u.ClearTarget()
		s.acquireTargetFor(u)
	}
}

// forceRetarget clears every unit's target and immediately reacquires.
// spec.md §4.3 "force_retarget()" — used when external position changes
// invalidate the spatial premise en masse (spec.md §4.8).
func (s *Simulator) forceRetarget() {
	for i := range s.table.units {
		s.table.units[i].ClearTarget()
	}
	s.acquireTargets()
}

// acquireTargetFor assigns the best valid enemy to u, or leaves it
// targetless if none qualifies.
//
// Scoring deliberately uses plain closest-distance ranking with NO
// ship/station priority tiering. The original source's
// calculate_target_priority gave armed ships a flat score of 100 against
// an armed station's 30 — meaning any armed ship within range would always
// outrank an adjacent station, no matter how much closer the station was.
// That is the station-targeting bug spec.md §4.3(b) calls out as a hard
// requirement to fix here: distance alone decides, so a station sitting
// right next to the querying unit is never masked by a farther ship. See
// DESIGN.md for the Open Question writeup.
func (s *Simulator) acquireTargetFor(u *model.Unit) {
	s.scratch = s.grid.Nearby(u.PosX, u.PosY, u.PosZ, u.MaxWeaponRange, s.scratch[:0])

	candidates := s.scratch
	if countAlive(s, candidates) < spatial.MinCandidatesBeforeFallback {
		candidates = s.allEnemyIndices(u.FactionID, s.scratch[:0])
	}

	var bestIdx = -1
	var bestDist = math.Inf(1)
	var bestID int64

	for _, idx := range candidates {
		other := s.table.byIndex(idx)
		if other.ID == u.ID || !other.IsAlive() || other.FactionID == u.FactionID {
			continue
		}
		d := distance(u, other)
		if d > u.MaxWeaponRange {
			continue
		}
		if !canDamageSome(u, other.Armor) {
			continue
		}
		if d < bestDist || (d == bestDist && other.ID < bestID) {
			bestDist = d
			bestIdx = idx
			bestID = other.ID
		}
	}

	if bestIdx >= 0 {
		u.SetTarget(bestID)
	}
}

func countAlive(s *Simulator, candidates []int) int {
	n := 0
	for _, idx := range candidates {
		if s.table.byIndex(idx).IsAlive() {
			n++
		}
	}
	return n
}

// allEnemyIndices is the linear-scan fallback spec.md §4.2/§4.3 requires
// when the grid returns too few candidates.
func (s *Simulator) allEnemyIndices(factionID int64, buf []int) []int {
	for i := range s.table.units {
		u := &s.table.units[i]
		if u.IsAlive() && u.FactionID != factionID {
			buf = append(buf, i)
		}
	}
	return buf
}
