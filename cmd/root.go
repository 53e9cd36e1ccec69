package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "canter",
		Usage: "Feed assembly service for the Canter equestrian network",
		Description: `Serves ranked, cursor-paginated home and explore feeds for
		Canter, the equestrian social network.

		The home feed shows posts from the viewer and followed riders; the
		explore feed surfaces discovery content blended with trending posts.
		A per-viewer seen-item ledger keeps refreshes from repeating the same
		page. Content lives in an SQLite database written by the surrounding
		application.

		Flags can generally be set via environment variables, e.g.:

		--database => FEED_DATABASE=feed.db
		--port => FEED_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
