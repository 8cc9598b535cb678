package simulator

import "math"

// applyMovement advances positions for units with an out-of-optimal-range
// target (spec.md §4.4). Stations never move, regardless of what
// classification-derived kinematics might otherwise imply, and units
// without a valid target never move either. Returns the Moved records for
// units whose position actually changed.
func (s *Simulator) applyMovement(dt float64) []Moved {
	var moved []Moved
	for i := range s.table.units {
		u := &s.table.units[i]
		if !u.IsAlive() || u.IsStation || !u.HasTarget {
			continue
		}
		target, ok := s.table.byID(u.TargetID)
		if !ok {
			continue
		}

		dx := target.PosX - u.PosX
		dy := target.PosY - u.PosY
		dz := target.PosZ - u.PosZ
		d := math.Sqrt(dx*dx + dy*dy + dz*dz)

		optimal := u.MaxOptimalRange()
		if d <= optimal {
			continue
		}

		step := math.Min(u.MaxSpeed*dt, d-optimal)
		if step <= 0 || d == 0 {
			continue
		}

		ux, uy, uz := dx/d, dy/d, dz/d
		u.PosX += ux * step
		u.PosY += uy * step
		u.PosZ += uz * step
		u.VelX = ux * step / dt
		u.VelY = uy * step / dt
		u.VelZ = uz * step / dt

		moved = append(moved, Moved{ID: u.ID, X: u.PosX, Y: u.PosY, Z: u.PosZ})
	}
	return moved
}
