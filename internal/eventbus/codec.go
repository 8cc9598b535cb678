package eventbus

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Christ139/battle-server/internal/simulator"
)

// TickPayload is the wire shape of a battle:tick broadcast (spec.md §6).
// It is msgpack-encoded for the data plane, mirroring the teacher's
// binary/JSON message split (integration_test.go's 0xFF-prefixed binary
// frames vs. its JSON Envelope messages) — see SPEC_FULL.md §3.1.
type TickPayload struct {
	BattleID     string                  `msgpack:"battle_id"`
	SystemID     string                  `msgpack:"system_id"`
	Tick         uint64                  `msgpack:"tick"`
	Moved        []simulator.Moved       `msgpack:"moved"`
	Damaged      []simulator.Damaged     `msgpack:"damaged"`
	Destroyed    []simulator.Destroyed   `msgpack:"destroyed"`
	WeaponsFired []simulator.WeaponFired `msgpack:"weapons_fired"`
}

// EncodeTick msgpack-encodes a tick's delta for binary-framed subscribers.
func EncodeTick(p TickPayload) ([]byte, error) {
	return msgpack.Marshal(p)
}

// DecodeTick reverses EncodeTick, mainly used by tests (bus_test.go) that
// need to assert on what was encoded; wsgate relays the encoded bytes as-is.
func DecodeTick(data []byte) (TickPayload, error) {
	var p TickPayload
	err := msgpack.Unmarshal(data, &p)
	return p, err
}
