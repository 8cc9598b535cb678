package spatial

import "testing"

func containsIdx(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func TestGridInsertAndNearby(t *testing.T) {
	g := New()
	g.Insert(100, 100, 0, 7)

	got := g.Nearby(100, 100, 0, 50, nil)
	if !containsIdx(got, 7) {
		t.Error("expected to find unit 7 near its own position")
	}

	far := g.Nearby(100000, 100000, 0, 50, nil)
	if containsIdx(far, 7) {
		t.Error("should not find unit 7 far away")
	}
}

func TestGridReset(t *testing.T) {
	g := New()
	g.Insert(0, 0, 0, 1)
	g.Reset()

	got := g.Nearby(0, 0, 0, 50, nil)
	if len(got) != 0 {
		t.Errorf("expected empty grid after reset, got %v", got)
	}
}

func TestGridNearbyScalesWithRadius(t *testing.T) {
	g := New()
	g.Insert(0, 0, 0, 1)
	g.Insert(500, 0, 0, 2)

	close := g.Nearby(0, 0, 0, 10, nil)
	if containsIdx(close, 2) {
		t.Error("unit 2 should not be a candidate at small radius")
	}

	wide := g.Nearby(0, 0, 0, 600, nil)
	if !containsIdx(wide, 1) || !containsIdx(wide, 2) {
		t.Error("both units should be candidates at large radius")
	}
}

func TestGridNegativeCoordinates(t *testing.T) {
	g := New()
	g.Insert(-1000, -1000, -1000, 3)

	got := g.Nearby(-1000, -1000, -1000, 10, nil)
	if !containsIdx(got, 3) {
		t.Error("expected to find unit at negative coordinates")
	}
}
