package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"leadflow_backend/internal/terminal/api"
	"leadflow_backend/internal/terminal/cache"
	"leadflow_backend/internal/terminal/conn"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadTerminal()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting terminal session", "api", cfg.GetTerminalAPIURL(), "ws", cfg.GetTerminalWSURL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var advisorID *uuid.UUID
	if raw := cfg.GetTerminalAdvisorID(); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			panic("invalid TERMINAL_ADVISOR_ID: " + err.Error())
		}
		advisorID = &id
	}

	client := api.NewClient(cfg.GetTerminalAPIURL(), cfg.GetTerminalToken())
	leadCache := cache.New(client, advisorID, log)
	leadCache.OnChange(func(s *cache.Snapshot) {
		log.Info("terminal snapshot",
			"version", s.Version(),
			"leads", len(s.Leads()),
			"users", len(s.Users()),
			"chat", len(s.Chat()),
			"synced_at", s.SyncedAt(),
		)
	})

	dialer := conn.WebSocketDialer{URL: cfg.GetTerminalWSURL(), Token: cfg.GetTerminalToken()}
	manager := conn.NewManager(dialer, cfg.GetTerminalReconnectInterval(), log)
	manager.OnStateChange(func(state conn.State) {
		log.Info("realtime state changed", "state", state.String())
	})
	detach := leadCache.Attach(ctx, manager)
	defer detach()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Initial load does not wait for the socket.
		_, err := leadCache.Resync(gctx)
		if err != nil {
			log.Warn("initial resync failed; waiting for reconnect", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		manager.Connect(gctx)
		<-gctx.Done()
		manager.Disconnect()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("terminal session stopped", "error", err)
	}
	log.Info("terminal session closed")
}
