package wsgate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Christ139/battle-server/internal/eventbus"
	"github.com/Christ139/battle-server/internal/manager"
	"github.com/Christ139/battle-server/internal/model"
)

// ---------- helpers, grounded on the teacher's integration_test.go ----------

type testClock struct{ t float64 }

func (c *testClock) now() float64 { return c.t }

// startTestGateway spins up an httptest.Server fronting a Gateway and
// returns it along with the WebSocket URL and a cleanup func.
func startTestGateway(t *testing.T) (*httptest.Server, string, *manager.Manager, *Gateway, func()) {
	t.Helper()

	bus := eventbus.New(16)
	mgr := manager.New(manager.DefaultConfig(), bus, nil, nil)
	gw := New(mgr, bus, (&testClock{}).now)
	go gw.Run()

	mux := http.NewServeMux()
	gw.Routes(mux)
	srv := httptest.NewServer(mux)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return srv, wsURL, mgr, gw, func() {
		gw.Shutdown()
		srv.Close()
	}
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	if msgType == websocket.BinaryMessage {
		return Envelope{T: MsgBattleTick, Data: raw}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := InEnvelope{T: msgType}
	raw, _ := json.Marshal(data)
	env.D = raw
	out, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// ---------- tests ----------

func TestSubscribeThenStartPublishesStartedEvent(t *testing.T) {
	_, wsURL, _, _, cleanup := startTestGateway(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgSubscribe, subscribeMsg{SystemID: "sys1"})
	ack := readEnvelope(t, conn)
	if ack.T != MsgAck {
		t.Fatalf("expected ack, got %s", ack.T)
	}

	sendMsg(t, conn, MsgStart, startMsg{
		BattleID: "b1",
		SystemID: "sys1",
		Units: []model.UnitRecord{
			{ID: 1, FactionID: 1, MaxHP: 100, HP: 100},
			{ID: 2, FactionID: 2, MaxHP: 100, HP: 100, PosX: 10},
		},
	})
	startAck := readEnvelope(t, conn)
	if startAck.T != MsgAck {
		t.Fatalf("expected ack for start, got %s", startAck.T)
	}

	started := readEnvelope(t, conn)
	if started.T != MsgBattleStarted {
		t.Fatalf("expected battle:started, got %s", started.T)
	}
	m := dataMap(t, started)
	if m["battle_id"] != "b1" {
		t.Fatalf("expected battle_id=b1, got %+v", m)
	}
}

func TestStatusUnknownBattleReturnsNotFound(t *testing.T) {
	_, wsURL, _, _, cleanup := startTestGateway(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgStatus, battleIDMsg{BattleID: "missing"})
	env := readEnvelope(t, conn)
	if env.T != MsgStatusResult {
		t.Fatalf("expected status_result, got %s", env.T)
	}
	m := dataMap(t, env)
	if found, _ := m["found"].(bool); found {
		t.Fatalf("expected found=false, got %+v", m)
	}
}

func TestStartThenStopOverWebSocket(t *testing.T) {
	_, wsURL, mgr, _, cleanup := startTestGateway(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgStart, startMsg{
		BattleID: "b2",
		SystemID: "sys2",
		Units: []model.UnitRecord{
			{ID: 1, FactionID: 1, MaxHP: 50, HP: 50},
			{ID: 2, FactionID: 2, MaxHP: 50, HP: 50, PosX: 5},
		},
	})
	if ack := readEnvelope(t, conn); ack.T != MsgAck {
		t.Fatalf("expected ack, got %s", ack.T)
	}

	sendMsg(t, conn, MsgStop, battleIDMsg{BattleID: "b2"})
	if ack := readEnvelope(t, conn); ack.T != MsgAck {
		t.Fatalf("expected ack for stop, got %s", ack.T)
	}

	snap, err := mgr.Status("b2", 0)
	if err != nil {
		t.Fatalf("status after stop: %v", err)
	}
	if !snap.Ended {
		t.Fatal("expected battle to be ended after stop")
	}
}

func TestUnknownMessageTypeReturnsError(t *testing.T) {
	_, wsURL, _, _, cleanup := startTestGateway(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, "not_a_real_type", struct{}{})
	env := readEnvelope(t, conn)
	if env.T != MsgError {
		t.Fatalf("expected error envelope, got %s", env.T)
	}
}

func TestFloodingClientIsDisconnected(t *testing.T) {
	_, wsURL, _, gw, cleanup := startTestGateway(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()

	for i := 0; i < maxMessagesPerSec+5; i++ {
		sendMsg(t, conn, MsgActiveBattles, struct{}{})
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if gw.hub.ClientCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the flooding client to be disconnected and unregistered")
}
