// Command battleserver wires together the battle manager and its
// transports (spec.md §6). Startup/shutdown is the teacher's main.go
// pattern: signal.Notify on SIGINT/SIGTERM, a background HTTP listener,
// and a graceful drain on shutdown — here extended with the manager's own
// Shutdown (ends every live battle with server_shutdown) and the store's
// Close.
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Christ139/battle-server/internal/config"
	"github.com/Christ139/battle-server/internal/eventbus"
	"github.com/Christ139/battle-server/internal/manager"
	"github.com/Christ139/battle-server/internal/observability"
	"github.com/Christ139/battle-server/internal/store"
	"github.com/Christ139/battle-server/internal/transport/httpapi"
	"github.com/Christ139/battle-server/internal/transport/wsgate"
)

func main() {
	cfg := config.Load()

	st, err := store.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("battleserver: open store: %v", err)
	}
	defer st.Close()

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		log.Fatalf("battleserver: new collector: %v", err)
	}

	bus := eventbus.New(cfg.EventBufferSize)

	mgrCfg := manager.Config{
		TickInterval:         cfg.TickInterval,
		IdleCheckInterval:    cfg.IdleCheckInterval,
		TimeoutCheckInterval: cfg.TimeoutCheckInterval,
		MaxBattleDuration:    cfg.MaxBattleDuration,
		StalemateWindow:      cfg.StalemateWindow,
		RetentionWindow:      cfg.RetentionWindow,
		EventBufferSize:      cfg.EventBufferSize,
		RNGSeed:              cfg.RNGSeed,
	}
	mgr := manager.New(mgrCfg, bus, st, metrics)
	mgr.Run()

	api, err := httpapi.New(mgr, st, metrics, cfg.AdminPassword, nil)
	if err != nil {
		log.Fatalf("battleserver: new httpapi server: %v", err)
	}
	mux := api.Routes()

	gw := wsgate.New(mgr, bus, nil)
	go gw.Run()
	gw.Routes(mux)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("battleserver: listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("battleserver: ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("battleserver: shutting down")

	httpServer.Close()
	gw.Shutdown()
	mgr.Shutdown()
}
