package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/akhatua2/designx/internal/agent"
	"github.com/akhatua2/designx/internal/api"
	"github.com/akhatua2/designx/internal/bootstrap"
	"github.com/akhatua2/designx/internal/config"
	"github.com/akhatua2/designx/internal/observability"
)

func main() {
	cfg := config.FromEnv()

	shutdownTracing, err := observability.InitTracingFromEnv("designx-api")
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}

	st, err := bootstrap.NewStore(cfg)
	if err != nil {
		log.Fatalf("bootstrap store: %v", err)
	}
	defer func() { _ = st.Close() }()

	media, err := bootstrap.NewObjectStore(cfg)
	if err != nil {
		log.Fatalf("bootstrap object store: %v", err)
	}

	registry := agent.NewRegistry()
	agentSvc := agent.NewService(cfg, registry)
	server := api.NewServer(cfg, agentSvc, st, media)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("designx api listening on :%s (store=%s storage=%s)", cfg.Port, cfg.StoreBackend, cfg.StorageBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.JobTTL > 0 {
		sweeper, err := agent.NewSweeper(registry, cfg.JobTTL, cfg.SweepSchedule)
		if err != nil {
			log.Fatalf("job retention sweeper: %v", err)
		}
		sweeper.Start()
		g.Go(func() error {
			<-ctx.Done()
			sweeper.Stop()
			return nil
		})
		log.Printf("job retention enabled: ttl=%s schedule=%q", cfg.JobTTL, cfg.SweepSchedule)
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("designx api failed: %v", err)
	}
}
