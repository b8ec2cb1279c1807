package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tycoon/internal/api"
	"tycoon/internal/clock"
	"tycoon/internal/config"
	"tycoon/internal/metrics"
	"tycoon/internal/session"
	"tycoon/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slot, closeStore, err := store.Open(ctx, store.Options{
		Kind:        cfg.Store,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		SaveFile:    cfg.SaveFile,
		PlayerID:    cfg.PlayerID,
	})
	if err != nil {
		logger.Error("store open failed", "err", err, "store", cfg.Store)
		os.Exit(1)
	}
	defer closeStore()

	recorder := metrics.NewRecorder()
	sess := session.New(session.Options{
		Store:    slot,
		Logger:   logger.With("player_id", cfg.PlayerID),
		Observer: recorder,
	})
	loaded, err := sess.Load(ctx)
	if err != nil {
		logger.Error("load game failed", "err", err)
		os.Exit(1)
	}
	if loaded.OfflineEarnings > 0 {
		logger.Info("offline earnings credited", "amount", loaded.OfflineEarnings)
	}

	scheduler := clock.New(sess, clock.Config{
		IncomeEvery:   cfg.IncomeEvery,
		MarketEvery:   cfg.MarketEvery,
		AutosaveEvery: cfg.AutosaveEvery,
	}, logger)
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(schedulerDone)
	}()

	server := api.New(sess, api.Options{Logger: logger, Metrics: recorder, TapRate: cfg.TapRate})
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("tycoon api listening", "addr", cfg.Addr, "store", cfg.Store)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		stop()
	}

	<-schedulerDone
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sess.Save(saveCtx); err != nil {
		logger.Error("final save failed", "err", err)
		return
	}
	logger.Info("game saved, shutting down")
}
