package httpapi

import "github.com/Christ139/battle-server/internal/model"

// Wire-shape types for the admin HTTP surface (spec.md §6 "Admin
// endpoints", "Control operations"). Kept separate from the internal
// battle/manager structs so a field rename inside the core never silently
// changes the wire contract.

type startRequest struct {
	BattleID string             `json:"battle_id"`
	SystemID string             `json:"system_id"`
	Units    []model.UnitRecord `json:"units"`
	Seed     *int64             `json:"seed,omitempty"`
}

type startResponse struct {
	Success  bool   `json:"success"`
	BattleID string `json:"battle_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

type stopResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type statsPayload struct {
	TicksRun       uint64  `json:"ticks_run"`
	WeaponsFired   uint64  `json:"weapons_fired"`
	DamageDealt    float64 `json:"damage_dealt"`
	UnitsDestroyed uint64  `json:"units_destroyed"`
}

type resultsPayload struct {
	DurationMS float64 `json:"duration_ms"`
	TotalTicks uint64  `json:"total_ticks"`
	Survivors  []int64 `json:"survivors"`
	Casualties []int64 `json:"casualties"`
	Victor     *int64  `json:"victor"`
	Reason     string  `json:"reason"`
}

type statusResponse struct {
	Found      bool             `json:"found"`
	BattleID   string           `json:"battle_id,omitempty"`
	SystemID   string           `json:"system_id,omitempty"`
	Tick       uint64           `json:"tick,omitempty"`
	DurationMS float64          `json:"duration_ms,omitempty"`
	Ended      bool             `json:"ended,omitempty"`
	UnitCount  int              `json:"unit_count,omitempty"`
	Factions   []int64          `json:"factions,omitempty"`
	IsIdle     bool             `json:"is_idle,omitempty"`
	Stats      *statsPayload    `json:"stats,omitempty"`
	Results    *resultsPayload  `json:"results,omitempty"`
}

type activeBattleEntry struct {
	BattleID   string  `json:"battle_id"`
	SystemID   string  `json:"system_id"`
	Tick       uint64  `json:"tick"`
	DurationMS float64 `json:"duration_ms"`
	UnitCount  int     `json:"unit_count"`
	Factions   []int64 `json:"factions"`
	IsIdle     bool    `json:"is_idle"`
}

type healthResponse struct {
	OK             bool    `json:"ok"`
	ActiveBattles  int     `json:"active_battles"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}
