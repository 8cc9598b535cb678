// Package wsgate implements the bidirectional WebSocket gateway from
// spec.md §6: a transport that relays the control operations (start,
// reinforcements, update_positions, update_position, force_retarget,
// status, stop, active_battles) to internal/manager.Manager and
// rebroadcasts internal/eventbus events (battle:started,
// battle:reinforcements, battle:concluded, battle:tick) to whichever
// clients subscribed to the affected system_id.
//
// The Hub/Client pair is adapted directly from the teacher's
// hub.go/client.go (bormisov1-spaceship-online-game/server): register and
// unregister channels, per-IP connection limiting, ping/pong keepalive
// read/write pumps. Unlike the teacher — where one Client drives one Game
// session — a wsgate.Client has no single owning battle; it subscribes to
// the event bus for whatever system_ids it asks for and forwards manager
// calls for whatever battle_ids it names in a request. wsgate depends on
// manager; manager never depends on wsgate (SPEC_FULL.md §3.2).
package wsgate

import "sync"

const (
	maxConnsPerIP = 20
	maxTotalConns = 4000
)

// Hub tracks every connected Client and enforces the per-IP and total
// connection ceilings, mirroring the teacher's Hub.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		ipConns:    make(map[string]int),
	}
}

// CanAccept reports whether ip is still under both connection ceilings.
// Called from the HTTP upgrade handler before a Client is even constructed.
func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

// TrackConnect records a newly accepted connection from ip.
func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

// TrackDisconnect releases the slot ip was holding.
func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			c.unsubscribeAll()

		case <-stop:
			return
		}
	}
}

// ClientCount reports how many clients are currently registered.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns reports the tracked connection count across all IPs.
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
