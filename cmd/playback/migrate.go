package main

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/urfave/cli/v2"
	_ "modernc.org/sqlite"

	"feed_playback/migrations"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Usage:     "Manage the database schema",
		ArgsUsage: "<up|up-one|down|status|version|reset>",
		Description: `Applies or rolls back the embedded goose migrations.

   up          Migrate to the latest version
   up-one      Migrate one version up
   down        Roll back one version
   status      Show migration status
   version     Show current version
   reset       Roll back all migrations`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "path to sqlite database",
				EnvVars: []string{"DATABASE_PATH"},
				Value:   "./data/playback.db",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return usageError("usage: playback migrate [--db path] <command>")
			}

			db, err := sql.Open("sqlite", c.String("db"))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			if err := migrations.Setup(); err != nil {
				return err
			}

			cmd := c.Args().First()
			switch cmd {
			case "up":
				err = goose.Up(db, ".")
			case "up-one":
				err = goose.UpByOne(db, ".")
			case "down":
				err = goose.Down(db, ".")
			case "status":
				err = goose.Status(db, ".")
			case "version":
				err = goose.Version(db, ".")
			case "reset":
				err = goose.Reset(db, ".")
			default:
				return usageError("unknown migrate command: %s", cmd)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", cmd, err)
			}
			return nil
		},
	}
}
