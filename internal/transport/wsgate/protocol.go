package wsgate

import (
	"encoding/json"

	"github.com/Christ139/battle-server/internal/model"
	"github.com/Christ139/battle-server/internal/simulator"
)

// Client -> gateway message types (spec.md §6 "Control operations").
const (
	MsgSubscribe      = "subscribe"
	MsgUnsubscribe    = "unsubscribe"
	MsgStart          = "start"
	MsgReinforce      = "reinforcements"
	MsgUpdatePositions = "update_positions"
	MsgUpdatePosition  = "update_position"
	MsgForceRetarget   = "force_retarget"
	MsgStatus          = "status"
	MsgStop            = "stop"
	MsgActiveBattles   = "active_battles"
)

// Gateway -> client message types. The battle:* names mirror the
// eventbus.Envelope.Type values published by internal/manager one-for-one;
// "ack"/"error" are gateway-local response envelopes for request/response
// control operations.
const (
	MsgBattleStarted       = "battle:started"
	MsgBattleReinforced    = "battle:reinforcements"
	MsgBattleConcluded     = "battle:concluded"
	MsgBattleTick          = "battle:tick"
	MsgAck                 = "ack"
	MsgError               = "error"
	MsgStatusResult        = "status_result"
	MsgActiveBattlesResult = "active_battles_result"
)

// Envelope wraps every outgoing message with a type tag, same shape as the
// teacher's protocol.go Envelope.
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids a
// double-unmarshal, same as the teacher's InEnvelope.
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

type subscribeMsg struct {
	SystemID string `json:"system_id"`
}

type startMsg struct {
	BattleID string             `json:"battle_id"`
	SystemID string             `json:"system_id"`
	Units    []model.UnitRecord `json:"units"`
	Seed     *int64             `json:"seed,omitempty"`
}

type reinforceMsg struct {
	BattleID string             `json:"battle_id"`
	Units    []model.UnitRecord `json:"units"`
}

type updatePositionsMsg struct {
	BattleID string                      `json:"battle_id"`
	Updates  []simulator.PositionUpdate  `json:"updates"`
}

type updatePositionMsg struct {
	BattleID    string  `json:"battle_id"`
	ID          int64   `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	ClearTarget bool    `json:"clear_target"`
}

type battleIDMsg struct {
	BattleID string `json:"battle_id"`
}

type errorMsg struct {
	Error string `json:"error"`
}

type ackMsg struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
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

// statusPayload is the status_result wire shape, independent of
// battle.StatusSnapshot so a rename inside the core never silently changes
// what a connected client receives.
type statusPayload struct {
	Found      bool            `json:"found"`
	BattleID   string          `json:"battle_id,omitempty"`
	SystemID   string          `json:"system_id,omitempty"`
	Tick       uint64          `json:"tick,omitempty"`
	DurationMS float64         `json:"duration_ms,omitempty"`
	Ended      bool            `json:"ended,omitempty"`
	UnitCount  int             `json:"unit_count,omitempty"`
	Factions   []int64         `json:"factions,omitempty"`
	IsIdle     bool            `json:"is_idle,omitempty"`
	Stats      *statsPayload   `json:"stats,omitempty"`
	Results    *resultsPayload `json:"results,omitempty"`
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
