package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"feed_playback/internal/bot"
	"feed_playback/internal/config"
	"feed_playback/internal/feedinfo"
	"feed_playback/internal/fetcher"
	"feed_playback/internal/playback"
	"feed_playback/internal/reader"
	"feed_playback/internal/scheduler"
	"feed_playback/internal/storage"
)

// app bundles the services shared by the serve and advance commands.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *storage.SQLite
	feeds    *feedinfo.Cache
	playback *playback.Service
	sched    *scheduler.Scheduler
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}

	client := reader.New(reader.Config{
		ConsumerKey:    cfg.Reader.ConsumerKey,
		ConsumerSecret: cfg.Reader.ConsumerSecret,
		AccessToken:    cfg.Reader.AccessToken,
		AccessSecret:   cfg.Reader.AccessSecret,
		UserID:         cfg.Reader.UserID,
		BaseURL:        cfg.Reader.BaseURL,
		ClientName:     cfg.Reader.ClientName,
		Timeout:        cfg.Reader.Timeout,
	}, log)

	feeds := feedinfo.New(store, client, fetcher.New(http.DefaultClient), log)
	pb := playback.New(store, feeds, client, playback.Options{
		AppURL:  cfg.AppURL,
		AppName: cfg.AppName,
	}, log)

	sched := scheduler.New(store, pb, log)
	sched.SetTickInterval(cfg.AdvanceInterval)

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		feeds:    feeds,
		playback: pb,
		sched:    sched,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("close database", "error", err)
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Advance due subscriptions on a timer and run the operator bot",
		Description: `Advances every due subscription at start and then once per
ADVANCE_INTERVAL. When TELEGRAM_BOT_TOKEN is set the operator bot is
started as well.`,
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.cfg.BotEnabled() {
				a.log.Info("starting scheduler", "interval", a.cfg.AdvanceInterval)
				a.sched.Run(ctx)
				a.log.Info("scheduler stopped")
				return nil
			}

			b, err := bot.New(a.cfg.TelegramBotToken, a.feeds, a.playback, a.store, a.cfg, a.log)
			if err != nil {
				return err
			}

			a.log.Info("starting bot", "interval", a.cfg.AdvanceInterval)

			go a.sched.Run(ctx)

			b.Run(ctx)

			a.log.Info("bot stopped")
			return nil
		},
	}
}

func advanceCmd() *cli.Command {
	return &cli.Command{
		Name:  "advance",
		Usage: "Advance today's due subscriptions once and exit",
		Description: `Runs a single pass over the subscriptions due today. Meant to be
invoked once a day by an external cron.`,
		Action: func(c *cli.Context) error {
			a, err := newApp(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()

			n := a.sched.RunOnce(c.Context)
			a.log.Info("advance finished", "count", n)
			return nil
		},
	}
}
