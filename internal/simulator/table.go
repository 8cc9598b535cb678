package simulator

import "github.com/Christ139/battle-server/internal/model"

// table is the dense unit array plus the id -> index map described in
// spec.md §9 ("Unit table"). It replaces the teacher's map[string]*Player
// storage (player.go, mob.go) with a layout that stays contiguous under
// iteration, which matters once a battle holds thousands of units.
//
// Dead units are never removed mid-battle — their slot just flips Alive
// false — so indices stay stable for the lifetime of the battle and
// target_id references never dangle across a unit's death.
type table struct {
	units   []model.Unit
	idIndex map[int64]int
}

func newTable(capacity int) *table {
	return &table{
		units:   make([]model.Unit, 0, capacity),
		idIndex: make(map[int64]int, capacity),
	}
}

// add appends u to the table, returning false if its id already exists.
func (t *table) add(u model.Unit) bool {
	if _, exists := t.idIndex[u.ID]; exists {
		return false
	}
	t.idIndex[u.ID] = len(t.units)
	t.units = append(t.units, u)
	return true
}

func (t *table) byIndex(i int) *model.Unit {
	return &t.units[i]
}

func (t *table) byID(id int64) (*model.Unit, bool) {
	i, ok := t.idIndex[id]
	if !ok {
		return nil, false
	}
	return &t.units[i], true
}

func (t *table) len() int {
	return len(t.units)
}
