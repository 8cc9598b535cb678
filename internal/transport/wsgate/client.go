package wsgate

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Christ139/battle-server/internal/battle"
	"github.com/Christ139/battle-server/internal/eventbus"
	"github.com/Christ139/battle-server/internal/manager"
)

// Keepalive and framing constants, carried over unchanged from the
// teacher's client.go.
const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 8192
	sendBufSize       = 256
	maxMessagesPerSec = 50
)

// binaryMarker prefixes an outgoing binary payload on the shared send
// channel so WritePump can tell it apart from a text (JSON) message —
// same convention as the teacher's SendBinary/WritePump.
const binaryMarker = 0xFF

// Client is one WebSocket connection into the gateway. It has no single
// owning battle: it subscribes to internal/eventbus for whatever
// system_ids it asks for, and relays control operations (spec.md §6) to
// mgr for whatever battle_ids it names.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	mgr        *manager.Manager
	bus        *eventbus.Bus
	send       chan []byte
	remoteAddr string
	now        func() float64

	msgCount   int
	msgResetAt time.Time

	subsMu sync.Mutex
	subs   map[string]func() // system_id -> cancel
}

// NewClient constructs a Client bound to conn. mgr and bus must be
// non-nil; now defaults to wall-clock time if nil.
func NewClient(hub *Hub, conn *websocket.Conn, mgr *manager.Manager, bus *eventbus.Bus, remoteAddr string, now func() float64) *Client {
	if now == nil {
		now = func() float64 { return float64(time.Now().UnixNano()) / 1e9 }
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		mgr:        mgr,
		bus:        bus,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
		now:        now,
		subs:       make(map[string]func()),
	}
}

// ReadPump reads control messages from the connection until it errors or
// closes, mirroring the teacher's ReadPump.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("wsgate: read error from %s: %v", c.remoteAddr, err)
			}
			break
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("wsgate: rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump drains the send channel to the connection and keeps the
// connection alive with periodic pings, mirroring the teacher's WritePump.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			var err error
			if len(message) > 0 && message[0] == binaryMarker {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON marshals msg and queues it as a text message.
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("wsgate: marshal error: %v", err)
		return
	}
	c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
	}
}

// sendBinary queues data as a binary message, prefixed with binaryMarker.
func (c *Client) sendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = binaryMarker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "malformed message"}})
		return
	}

	switch env.T {
	case MsgSubscribe:
		c.handleSubscribe(env.D)
	case MsgUnsubscribe:
		c.handleUnsubscribe(env.D)
	case MsgStart:
		c.handleStart(env.D)
	case MsgReinforce:
		c.handleReinforce(env.D)
	case MsgUpdatePositions:
		c.handleUpdatePositions(env.D)
	case MsgUpdatePosition:
		c.handleUpdatePosition(env.D)
	case MsgForceRetarget:
		c.handleForceRetarget(env.D)
	case MsgStatus:
		c.handleStatus(env.D)
	case MsgStop:
		c.handleStop(env.D)
	case MsgActiveBattles:
		c.handleActiveBattles()
	default:
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "unknown message type: " + env.T}})
	}
}

func (c *Client) handleSubscribe(data json.RawMessage) {
	var msg subscribeMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.SystemID == "" {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "system_id is required"}})
		return
	}

	c.subsMu.Lock()
	if _, exists := c.subs[msg.SystemID]; exists {
		c.subsMu.Unlock()
		c.SendJSON(Envelope{T: MsgAck, Data: ackMsg{OK: true, Detail: "already subscribed"}})
		return
	}
	ch, cancel := c.bus.Subscribe(msg.SystemID)
	c.subs[msg.SystemID] = cancel
	c.subsMu.Unlock()

	go c.relay(ch)
	c.SendJSON(Envelope{T: MsgAck, Data: ackMsg{OK: true}})
}

func (c *Client) handleUnsubscribe(data json.RawMessage) {
	var msg subscribeMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.SystemID == "" {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "system_id is required"}})
		return
	}

	c.subsMu.Lock()
	cancel, ok := c.subs[msg.SystemID]
	delete(c.subs, msg.SystemID)
	c.subsMu.Unlock()

	if ok {
		cancel()
	}
	c.SendJSON(Envelope{T: MsgAck, Data: ackMsg{OK: true}})
}

func (c *Client) unsubscribeAll() {
	c.subsMu.Lock()
	subs := c.subs
	c.subs = make(map[string]func())
	c.subsMu.Unlock()
	for _, cancel := range subs {
		cancel()
	}
}

// relay forwards ch's envelopes to the connection until ch is closed by
// an unsubscribe. Control-plane envelopes (JSON non-nil) go out as text;
// the tick envelope's pre-encoded msgpack payload goes out as binary.
func (c *Client) relay(ch <-chan eventbus.Envelope) {
	for env := range ch {
		if env.Binary != nil {
			c.sendBinary(env.Binary)
			continue
		}
		c.SendJSON(Envelope{T: env.Type, Data: env.JSON})
	}
}

func (c *Client) handleStart(data json.RawMessage) {
	var msg startMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "malformed start message"}})
		return
	}
	if msg.BattleID == "" || msg.SystemID == "" {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "battle_id and system_id are required"}})
		return
	}
	if err := c.mgr.Start(msg.BattleID, msg.SystemID, msg.Units, c.now(), msg.Seed); err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: err.Error()}})
		return
	}
	c.SendJSON(Envelope{T: MsgAck, Data: ackMsg{OK: true}})
}

func (c *Client) handleReinforce(data json.RawMessage) {
	var msg reinforceMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.BattleID == "" {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "battle_id is required"}})
		return
	}
	added, err := c.mgr.Reinforcements(msg.BattleID, msg.Units, c.now())
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: err.Error()}})
		return
	}
	c.SendJSON(Envelope{T: MsgAck, Data: ackMsg{OK: true, Detail: strconv.Itoa(added)}})
}

func (c *Client) handleUpdatePositions(data json.RawMessage) {
	var msg updatePositionsMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.BattleID == "" {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "battle_id is required"}})
		return
	}
	n, err := c.mgr.UpdatePositions(msg.BattleID, msg.Updates)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: err.Error()}})
		return
	}
	c.SendJSON(Envelope{T: MsgAck, Data: ackMsg{OK: true, Detail: strconv.Itoa(n)}})
}

func (c *Client) handleUpdatePosition(data json.RawMessage) {
	var msg updatePositionMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.BattleID == "" {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "battle_id is required"}})
		return
	}
	ok, err := c.mgr.UpdateSinglePosition(msg.BattleID, msg.ID, msg.X, msg.Y, msg.Z, msg.ClearTarget)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: err.Error()}})
		return
	}
	c.SendJSON(Envelope{T: MsgAck, Data: ackMsg{OK: ok}})
}

func (c *Client) handleForceRetarget(data json.RawMessage) {
	var msg battleIDMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.BattleID == "" {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "battle_id is required"}})
		return
	}
	if err := c.mgr.ForceRetarget(msg.BattleID); err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: err.Error()}})
		return
	}
	c.SendJSON(Envelope{T: MsgAck, Data: ackMsg{OK: true}})
}

func (c *Client) handleStatus(data json.RawMessage) {
	var msg battleIDMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.BattleID == "" {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "battle_id is required"}})
		return
	}
	snap, err := c.mgr.Status(msg.BattleID, c.now())
	if err != nil {
		if errors.Is(err, manager.ErrBattleNotFound) {
			c.SendJSON(Envelope{T: MsgStatusResult, Data: statusPayload{Found: false}})
			return
		}
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: err.Error()}})
		return
	}
	c.SendJSON(Envelope{T: MsgStatusResult, Data: toStatusPayload(snap)})
}

func (c *Client) handleStop(data json.RawMessage) {
	var msg battleIDMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.BattleID == "" {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: "battle_id is required"}})
		return
	}
	if err := c.mgr.Stop(msg.BattleID, c.now()); err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: errorMsg{Error: err.Error()}})
		return
	}
	c.SendJSON(Envelope{T: MsgAck, Data: ackMsg{OK: true}})
}

func (c *Client) handleActiveBattles() {
	snaps := c.mgr.ActiveBattles(c.now())
	out := make([]activeBattleEntry, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, activeBattleEntry{
			BattleID:   snap.BattleID,
			SystemID:   snap.SystemID,
			Tick:       snap.Tick,
			DurationMS: snap.DurationMS,
			UnitCount:  snap.UnitCount,
			Factions:   snap.Factions,
			IsIdle:     snap.IsIdle,
		})
	}
	c.SendJSON(Envelope{T: MsgActiveBattlesResult, Data: out})
}

func toStatusPayload(snap battle.StatusSnapshot) statusPayload {
	resp := statusPayload{
		Found:      true,
		BattleID:   snap.BattleID,
		SystemID:   snap.SystemID,
		Tick:       snap.Tick,
		DurationMS: snap.DurationMS,
		Ended:      snap.Ended,
		UnitCount:  snap.UnitCount,
		Factions:   snap.Factions,
		IsIdle:     snap.IsIdle,
		Stats: &statsPayload{
			TicksRun:       snap.Stats.TicksRun,
			WeaponsFired:   snap.Stats.WeaponsFired,
			DamageDealt:    snap.Stats.DamageDealt,
			UnitsDestroyed: snap.Stats.UnitsDestroyed,
		},
	}
	if snap.Results != nil {
		var victor *int64
		if snap.Results.HasVictor {
			v := snap.Results.Victor
			victor = &v
		}
		resp.Results = &resultsPayload{
			DurationMS: snap.Results.DurationMS,
			TotalTicks: snap.Results.TotalTicks,
			Survivors:  snap.Results.Survivors,
			Casualties: snap.Results.Casualties,
			Victor:     victor,
			Reason:     snap.Results.Reason,
		}
	}
	return resp
}
