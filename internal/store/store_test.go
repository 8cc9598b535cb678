package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "battle.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettingRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if got := s.GetSetting("jwt_secret"); got != "" {
		t.Fatalf("expected empty setting before any write, got %q", got)
	}

	if err := s.SetSetting("jwt_secret", "deadbeef"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if got := s.GetSetting("jwt_secret"); got != "deadbeef" {
		t.Fatalf("expected deadbeef, got %q", got)
	}

	if err := s.SetSetting("jwt_secret", "updated"); err != nil {
		t.Fatalf("SetSetting (update): %v", err)
	}
	if got := s.GetSetting("jwt_secret"); got != "updated" {
		t.Fatalf("expected updated, got %q", got)
	}
}

func TestRecordLifecycleEventAndRecentAudit(t *testing.T) {
	s := openTestStore(t)

	if err := s.RecordLifecycleEvent("b1", "sys1", "started", "", nil); err != nil {
		t.Fatalf("RecordLifecycleEvent(started): %v", err)
	}
	victor := int64(7)
	if err := s.RecordLifecycleEvent("b1", "sys1", "concluded", "max_duration_exceeded_30m", &victor); err != nil {
		t.Fatalf("RecordLifecycleEvent(concluded): %v", err)
	}

	rows, err := s.RecentAudit(10)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(rows))
	}

	var concluded *AuditRow
	for i := range rows {
		if rows[i].Event == "concluded" {
			concluded = &rows[i]
		}
	}
	if concluded == nil {
		t.Fatal("expected a concluded row")
	}
	if !concluded.VictorFaction.Valid || concluded.VictorFaction.Int64 != 7 {
		t.Fatalf("expected victor_faction=7, got %+v", concluded.VictorFaction)
	}
	if concluded.Reason != "max_duration_exceeded_30m" {
		t.Fatalf("unexpected reason %q", concluded.Reason)
	}
}
