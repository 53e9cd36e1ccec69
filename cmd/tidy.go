package cmd

import (
	"fmt"

	"canter/config"
	"canter/db"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the seen-item ledger",
		Description: `Tidy up the database by removing seen-item records that are old.

		Removes seen records last touched before the configured retention
		period. This keeps the ledger size down while still letting content
		resurface once its seen mark expires. Can be run as a cron job; the
		serve command also runs the sweep periodically.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "feed.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"FEED_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file location",
				EnvVars: []string{"FEED_CONFIG"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}

			database := ctx.String("database")
			fmt.Println("Database configured: ", database)
			return db.Tidy(database, cfg.Seen.RetentionDays)
		},
	}
}
