package manager

// Event payloads published on the control plane (spec.md §6 "Broadcast
// events"). These travel as JSON inside eventbus.Envelope.JSON; the
// high-frequency battle:tick event uses eventbus.TickPayload over msgpack
// instead (see internal/eventbus/codec.go).

const (
	EventStarted        = "battle:started"
	EventReinforcements = "battle:reinforcements"
	EventConcluded      = "battle:concluded"
	EventTick           = "battle:tick"
)

// StartedEvent announces a new battle (spec.md §6 "battle:started").
type StartedEvent struct {
	BattleID  string  `json:"battle_id"`
	SystemID  string  `json:"system_id"`
	UnitCount int     `json:"unit_count"`
	Factions  []int64 `json:"factions"`
}

// ReinforcementUnit identifies one unit added by a reinforcements call.
type ReinforcementUnit struct {
	ID        int64 `json:"id"`
	FactionID int64 `json:"faction_id"`
	PlayerID  int64 `json:"player_id"`
}

// ReinforcementsEvent announces units joining a live battle (spec.md §6
// "battle:reinforcements").
type ReinforcementsEvent struct {
	BattleID       string               `json:"battle_id"`
	SystemID       string               `json:"system_id"`
	Reinforcements []ReinforcementUnit `json:"reinforcements"`
}

// ConcludedEvent announces a battle's terminal outcome (spec.md §6
// "battle:concluded").
type ConcludedEvent struct {
	BattleID   string  `json:"battle_id"`
	SystemID   string  `json:"system_id"`
	DurationMS float64 `json:"duration_ms"`
	TotalTicks uint64  `json:"total_ticks"`
	Survivors  []int64 `json:"survivors"`
	Casualties []int64 `json:"casualties"`
	Victor     *int64  `json:"victor"`
	Reason     string  `json:"reason"`
}
