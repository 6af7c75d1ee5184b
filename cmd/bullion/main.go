package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/bullion/internal/config"
	"github.com/kailas-cloud/bullion/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "bullion:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	envFlag := &cli.StringFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "Configuration environment (config/<env>.yaml)",
		EnvVars: []string{"ENV"},
		Value:   config.GetEnv(),
	}
	levelFlag := &cli.StringFlag{
		Name:    "log-level",
		Aliases: []string{"l"},
		Usage:   "Override logging level (debug, info, warn, error)",
	}

	return &cli.App{
		Name:    "bullion",
		Usage:   "Hybrid text and vector product search for a precious-metals catalog",
		Version: fmt.Sprintf("%s (%s, %s)", version.Version, version.Commit, version.Date),
		Flags:   []cli.Flag{envFlag, levelFlag},
		// serve is the default command.
		Action: serveCommand,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveCommand,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the database schema (pgvector extension, tables, indexes)",
				Action: migrateCommand,
			},
		},
	}
}
