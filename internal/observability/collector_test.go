package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewCollectorRegisterOrReuse(t *testing.T) {
	reg := prometheus.NewRegistry()

	c1, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("first NewCollector: %v", err)
	}
	c2, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector against the same registry should reuse, got error: %v", err)
	}
	if c1.ActiveBattles != c2.ActiveBattles {
		t.Fatal("expected the second collector to reuse the first's gauge")
	}
}

func TestRecordDeltaNilSafe(t *testing.T) {
	var c *Collector
	c.RecordDelta(3, 1, 42.5) // must not panic
	c.SetBattleCounts(1, 2)
	c.ObserveTick(0.01)
	c.RecordConcluded("stalemate_no_damage_5m")
}
