package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "playback",
		Usage: "Replay the archive of a feed into a reader stream",
		Description: `Feed playback resolves a feed through the reader service, snapshots
its item list and then tags one older item per period into a public
label stream of the configured reader account.

Configuration is read from the environment (READER_*, DATABASE_PATH,
TELEGRAM_BOT_TOKEN, ...).`,
		Commands: []*cli.Command{
			serveCmd(),
			advanceCmd(),
			migrateCmd(),
		},
		Action: func(c *cli.Context) error {
			return cli.ShowAppHelp(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("playback", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func usageError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), 2)
}
