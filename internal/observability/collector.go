// Package observability exposes the Prometheus metrics spec.md's manager
// layer drives: tick duration, active/idle battle counts, and per-tick
// combat counters. The register-or-reuse pattern here is adapted from
// Cizor-spacetime-constellation-sim/internal/observability's
// SchedulerCollector, so re-registering against the same Registerer (as
// collector_test.go does, calling NewCollector twice against one
// prometheus.NewRegistry()) returns the existing collector instead of
// erroring.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles every metric the battle manager updates.
type Collector struct {
	gatherer prometheus.Gatherer

	TickDuration      prometheus.Histogram
	ActiveBattles     prometheus.Gauge
	IdleBattles       prometheus.Gauge
	WeaponsFiredTotal prometheus.Counter
	DamageDealtTotal  prometheus.Counter
	UnitsDestroyed    prometheus.Counter
	ConcludedTotal    *prometheus.CounterVec
}

// NewCollector registers the manager's metrics against reg, defaulting to
// the global Prometheus registry when reg is nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "battle_tick_duration_seconds",
		Help:    "Duration of one simulator.Step call across all battles.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "battle_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "battle_active_total",
		Help: "Number of battles currently not idle.",
	}), "battle_active_total")
	if err != nil {
		return nil, err
	}

	idle, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "battle_idle_total",
		Help: "Number of battles currently idle.",
	}), "battle_idle_total")
	if err != nil {
		return nil, err
	}

	weaponsFired, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "battle_weapons_fired_total",
		Help: "Cumulative weapon discharges across all battles.",
	}), "battle_weapons_fired_total")
	if err != nil {
		return nil, err
	}

	damageDealt, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "battle_damage_dealt_total",
		Help: "Cumulative damage dealt across all battles.",
	}), "battle_damage_dealt_total")
	if err != nil {
		return nil, err
	}

	unitsDestroyed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "battle_units_destroyed_total",
		Help: "Cumulative units destroyed across all battles.",
	}), "battle_units_destroyed_total")
	if err != nil {
		return nil, err
	}

	concluded, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "battle_concluded_total",
		Help: "Cumulative battles concluded, labeled by termination reason.",
	}, []string{"reason"}), "battle_concluded_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		TickDuration:      tickDuration,
		ActiveBattles:     active,
		IdleBattles:       idle,
		WeaponsFiredTotal: weaponsFired,
		DamageDealtTotal:  damageDealt,
		UnitsDestroyed:    unitsDestroyed,
		ConcludedTotal:    concluded,
	}, nil
}

// Handler exposes a ready-to-mount /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetBattleCounts updates the active/idle gauges. Nil-safe so callers do
// not need to special-case an unconfigured collector.
func (c *Collector) SetBattleCounts(active, idle int) {
	if c == nil {
		return
	}
	if c.ActiveBattles != nil {
		c.ActiveBattles.Set(float64(active))
	}
	if c.IdleBattles != nil {
		c.IdleBattles.Set(float64(idle))
	}
}

// ObserveTick records one tick's wall-clock duration.
func (c *Collector) ObserveTick(seconds float64) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(seconds)
}

// RecordDelta folds a tick's weapons-fired/damage/destroyed counts into
// the cumulative counters.
func (c *Collector) RecordDelta(weaponsFired, unitsDestroyed int, damageDealt float64) {
	if c == nil {
		return
	}
	if c.WeaponsFiredTotal != nil {
		c.WeaponsFiredTotal.Add(float64(weaponsFired))
	}
	if c.UnitsDestroyed != nil {
		c.UnitsDestroyed.Add(float64(unitsDestroyed))
	}
	if c.DamageDealtTotal != nil {
		c.DamageDealtTotal.Add(damageDealt)
	}
}

// RecordConcluded increments the concluded counter for reason.
func (c *Collector) RecordConcluded(reason string) {
	if c == nil || c.ConcludedTotal == nil {
		return
	}
	c.ConcludedTotal.WithLabelValues(reason).Inc()
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return g, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}
