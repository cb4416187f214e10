// Command watch runs a headless session for one user and prints their
// conversations and the tallies of an open thread whenever they change.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	env "github.com/Netflix/go-env"

	"github.com/emilythestrangee/warroom/backend/internal/auth"
	"github.com/emilythestrangee/warroom/backend/internal/config"
	"github.com/emilythestrangee/warroom/backend/internal/database"
	"github.com/emilythestrangee/warroom/backend/internal/notify"
	"github.com/emilythestrangee/warroom/backend/internal/realtime"
	"github.com/emilythestrangee/warroom/backend/internal/session"
	"github.com/emilythestrangee/warroom/backend/internal/store"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type watchConfig struct {
	Token       string        `env:"WARROOM_TOKEN,required=true"`
	ThreadID    string        `env:"WARROOM_THREAD"`
	RealtimeURL string        `env:"WARROOM_REALTIME_URL"`
	Refresh     time.Duration `env:"WARROOM_REFRESH,default=2s"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return exitConfig, err
	}
	var wc watchConfig
	if _, err := env.UnmarshalFromEnviron(&wc); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.DSN(), log)
	if err != nil {
		return exitRuntime, err
	}
	defer db.Close()

	var channel realtime.Channel = realtime.NewListener(log, cfg.DSN(), realtime.DefaultChannel)
	if wc.RealtimeURL != "" {
		channel = realtime.NewRemote(log, wc.RealtimeURL, wc.Token)
	}
	identity := auth.TokenIdentity{Token: func() string { return wc.Token }, Secret: []byte(cfg.JWTSecret)}
	notifier := notify.Fanout{
		notify.NewLogger(log),
		notify.Func(func(_ context.Context, n notify.Notice) {
			fmt.Fprintf(os.Stderr, "! %s: %s\n", n.Action, n.Message)
		}),
	}

	s := session.New(log, store.New(db.GetDB()), channel, identity, notifier)
	if err := s.Start(ctx); err != nil {
		return exitRuntime, err
	}
	defer s.Close()
	if wc.ThreadID != "" {
		if err := s.OpenThread(ctx, wc.ThreadID); err != nil {
			return exitRuntime, err
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	tick := time.NewTicker(wc.Refresh)
	defer tick.Stop()
	var last string
	for {
		if frame := render(s); frame != last {
			fmt.Print(frame)
			last = frame
		}
		select {
		case <-ctx.Done():
			return exitOK, nil
		case <-hup:
			if err := s.Reload(ctx); err != nil {
				log.Error("reload failed", "error", err)
			}
		case <-tick.C:
		}
	}
}
