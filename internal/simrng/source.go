// Package simrng provides the single seedable source of randomness the
// core uses: staggering a freshly-constructed weapon's last_fired time so
// a fleet loaded in one instant does not discharge in a synchronized
// volley (spec.md §3 "Weapon" invariant). Everything else in the core is a
// deterministic function of (state, dt, wall_now) — see spec.md §8
// "Round-trip / determinism".
package simrng

import "math/rand"

// Source wraps a *rand.Rand behind the one method the core needs,
// so callers never reach for the process-global math/rand directly
// (which the original implementation did, and which the spec calls
// out as the thing to fix — see spec.md §9 "RNG seeding").
type Source struct {
	r *rand.Rand
}

// New creates a Source seeded deterministically from seed. Two Sources
// created with the same seed produce the same sequence of Float64 draws.
func New(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a pseudo-random number in [0, 1), matching the
// distribution spec.md §4.1 step 4 requires for last_fired staggering.
func (s *Source) Float64() float64 {
	return s.r.Float64()
}
