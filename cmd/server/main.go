package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supertictactoe/internal/app"
	"supertictactoe/internal/app/onboarding"
	"supertictactoe/internal/config"
	"supertictactoe/internal/matchmaking"
	"supertictactoe/internal/ports"
	"supertictactoe/internal/ports/ws"
	"supertictactoe/internal/storage"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

// userStore is what the wiring needs from a store: the read/record surface
// plus profile writes for onboarding.
type userStore interface {
	ports.UserStore
	SaveUser(ctx context.Context, u *ports.User) error
}

func run(cfg config.Config, log *zap.Logger) error {
	var store userStore
	if cfg.DataDir != "" {
		bs, err := storage.OpenBadger(cfg.DataDir)
		if err != nil {
			return err
		}
		defer bs.Close()
		store = bs
		log.Info("using badger store", zap.String("dir", cfg.DataDir))
	} else {
		store = storage.NewMemoryStore()
		log.Info("using in-memory store")
	}

	registry := app.NewRegistry(log)
	results := app.NewResultSink(store, log)
	svc := app.NewService(registry, results, cfg, log)

	hub := ws.NewHub(cfg, log)
	svc.SetSink(hub)
	svc.SetCloser(hub.CloseMatch)
	hub.Start()
	defer hub.Stop()

	queue := matchmaking.NewQueue(func(gameID, player1, player2 string) error {
		_, err := registry.CreatePrepopulated(gameID, player1, player2)
		return err
	}, func(gameID string) bool {
		m, ok := registry.Get(gameID)
		return ok && !m.Terminal()
	}, cfg, log)

	reaper := app.NewReaper(svc, queue, cfg, log)
	if err := reaper.Start(); err != nil {
		return err
	}
	defer reaper.Stop()

	profiles := onboarding.NewService(store, nil)
	server := ws.NewServer(svc, queue, hub, profiles, log)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
