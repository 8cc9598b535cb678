package wsgate

import (
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Christ139/battle-server/internal/eventbus"
	"github.com/Christ139/battle-server/internal/manager"
)

// upgrader is configured the same way as the teacher's: same-origin check
// that tolerates non-browser clients sending no Origin header at all.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Gateway bundles the Hub and its collaborators and exposes the single
// /ws upgrade route (spec.md §6).
type Gateway struct {
	hub *Hub
	mgr *manager.Manager
	bus *eventbus.Bus
	now func() float64

	stop chan struct{}
}

// New constructs a Gateway. mgr and bus must be non-nil — a gateway with
// no manager or event bus to relay to has nothing to do.
func New(mgr *manager.Manager, bus *eventbus.Bus, now func() float64) *Gateway {
	if now == nil {
		now = func() float64 { return float64(time.Now().UnixNano()) / 1e9 }
	}
	return &Gateway{
		hub:  NewHub(),
		mgr:  mgr,
		bus:  bus,
		now:  now,
		stop: make(chan struct{}),
	}
}

// Run starts the Hub's register/unregister loop. Call once before serving
// requests; blocks until Shutdown is called, so call it on its own
// goroutine.
func (g *Gateway) Run() {
	g.hub.Run(g.stop)
}

// Shutdown stops the Hub's loop.
func (g *Gateway) Shutdown() {
	close(g.stop)
}

// Routes registers the /ws upgrade endpoint on mux.
func (g *Gateway) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.handleUpgrade)
}

func (g *Gateway) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r)
	if !g.hub.CanAccept(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wsgate: upgrade error: %v", err)
		return
	}

	g.hub.TrackConnect(ip)

	client := NewClient(g.hub, conn, g.mgr, g.bus, ip, g.now)
	g.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
