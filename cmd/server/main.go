package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vtc-tracker/server/internal/config"
	"vtc-tracker/server/internal/httpapi"
	"vtc-tracker/server/internal/store"
	"vtc-tracker/server/internal/store/memory"
	"vtc-tracker/server/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	var st store.Store
	var closer func()

	if cfg.DatabaseURL != "" {
		pg, err := postgres.NewStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to init postgres store: %v", err)
		}
		st = pg
		closer = pg.Close
		log.Printf("using postgres store")
	} else {
		st = memory.NewStore()
		log.Printf("using memory store")
	}

	if closer != nil {
		defer closer()
	}

	// Expired pairing codes are already invisible to lookups; the purge
	// just keeps the table from accumulating dead rows.
	if cfg.CodePurgeIntervalHours > 0 {
		go runCodePurgeLoop(rootCtx, st, cfg.CodePurgeIntervalHours)
	}

	srv := httpapi.NewServer(cfg, st)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("vtc-tracker server listening on %s", cfg.ListenAddr())
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Printf("shutdown requested")
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	cancelRoot()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
}

func runCodePurgeLoop(ctx context.Context, st store.Store, intervalHours int) {
	interval := time.Duration(intervalHours) * time.Hour

	runOnce := func() {
		ctxPurge, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		n, err := st.PurgeExpiredDeviceCodes(ctxPurge, time.Now().UTC())
		if err != nil {
			log.Printf("pairing code purge failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("purged %d expired pairing codes", n)
		}
	}

	runOnce()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runOnce()
		}
	}
}
