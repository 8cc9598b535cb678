// Package httpapi implements the admin HTTP surface from spec.md §6
// ("Admin endpoints", "Control operations" minus the external-event-bus
// ones that internal/transport/wsgate handles): health, battle start,
// status, active list, and stop, plus bearer-token admin login. Routes
// are built the way the teacher's SetupRoutes builds routes — closures
// registered on a plain *http.ServeMux, no router framework (SPEC_FULL.md
// §3.3).
package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Christ139/battle-server/internal/manager"
	"github.com/Christ139/battle-server/internal/observability"
	"github.com/Christ139/battle-server/internal/store"
)

// extractIP strips the port from r.RemoteAddr, matching the teacher's
// server.go helper of the same name.
func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Server bundles the collaborators the admin routes need.
type Server struct {
	mgr     *manager.Manager
	metrics *observability.Collector
	auth    *adminAuth

	now       func() float64
	startedAt time.Time
}

// New constructs a Server. metrics may be nil, in which case Routes does
// not mount /metrics at all. adminPassword must
// be non-empty — an admin surface with no password is refused outright
// rather than silently open.
func New(mgr *manager.Manager, st *store.Store, metrics *observability.Collector, adminPassword string, now func() float64) (*Server, error) {
	if adminPassword == "" {
		return nil, errors.New("httpapi: ADMIN_PASSWORD must be set")
	}
	auth, err := newAdminAuth(adminPassword, st)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = func() float64 { return float64(time.Now().UnixNano()) / 1e9 }
	}
	return &Server{
		mgr:       mgr,
		metrics:   metrics,
		auth:      auth,
		now:       now,
		startedAt: time.Now(),
	}, nil
}

// Routes builds the admin mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/admin/login", s.handleLogin)
	mux.HandleFunc("/battle/start", s.requireAdmin(s.handleStart))
	mux.HandleFunc("/battle/status/", s.handleStatus)
	mux.HandleFunc("/battles/active", s.handleActiveBattles)
	mux.HandleFunc("/battle/stop/", s.requireAdmin(s.handleStop))

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	return mux
}

// requireAdmin wraps h so it only runs given a valid "Bearer <token>"
// Authorization header (spec.md §6 "Admin endpoints").
func (s *Server) requireAdmin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || s.auth.Validate(token) != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active := s.mgr.ActiveBattles(s.now())
	writeJSON(w, http.StatusOK, healthResponse{
		OK:            true,
		ActiveBattles: len(active),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	token, err := s.auth.Login(req.Password, extractIP(r))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, startResponse{Success: false, Error: "malformed request body"})
		return
	}
	if req.BattleID == "" || req.SystemID == "" {
		writeJSON(w, http.StatusBadRequest, startResponse{Success: false, Error: "battle_id and system_id are required"})
		return
	}

	if err := s.mgr.Start(req.BattleID, req.SystemID, req.Units, s.now(), req.Seed); err != nil {
		writeJSON(w, http.StatusBadRequest, startResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, startResponse{Success: true, BattleID: req.BattleID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/battle/status/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Found: false})
		return
	}

	snap, err := s.mgr.Status(id, s.now())
	if err != nil {
		if errors.Is(err, manager.ErrBattleNotFound) {
			writeJSON(w, http.StatusNotFound, statusResponse{Found: false})
			return
		}
		writeJSON(w, http.StatusInternalServerError, statusResponse{Found: false})
		return
	}

	resp := statusResponse{
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
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActiveBattles(w http.ResponseWriter, r *http.Request) {
	snaps := s.mgr.ActiveBattles(s.now())
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
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/battle/stop/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, stopResponse{Success: false, Error: "battle id is required"})
		return
	}

	if err := s.mgr.Stop(id, s.now()); err != nil {
		if errors.Is(err, manager.ErrBattleNotFound) {
			writeJSON(w, http.StatusNotFound, stopResponse{Success: false, Error: "battle not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, stopResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stopResponse{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
