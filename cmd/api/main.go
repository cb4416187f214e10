package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/warroom/backend/internal/config"
	"github.com/emilythestrangee/warroom/backend/internal/database"
	"github.com/emilythestrangee/warroom/backend/internal/handlers"
	"github.com/emilythestrangee/warroom/backend/internal/realtime"
	"github.com/emilythestrangee/warroom/backend/internal/server"
	"github.com/emilythestrangee/warroom/backend/internal/store"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "api terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return exitConfig, err
	}
	log := cfg.Logger(os.Stdout)
	slog.SetDefault(log)
	if cfg.Level() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.DSN(), log)
	if err != nil {
		return exitRuntime, err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return exitRuntime, err
	}

	hub := realtime.NewHub(log)
	go func() {
		listener := realtime.NewListener(log, cfg.DSN(), realtime.DefaultChannel)
		if err := hub.Run(ctx, listener); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("realtime relay stopped", "error", err)
		}
	}()

	h := handlers.NewHandler(log, store.New(db.GetDB()), hub, []byte(cfg.JWTSecret), cfg.TokenTTL)
	srv := server.New(log, cfg, db, h).HTTPServer()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return exitRuntime, fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown: %w", err)
	}
	return exitOK, nil
}
