package main

import (
	"embed"
	"log"
	"mime"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")

	app := &cli.App{
		Name:  "xfive",
		Usage: "live bracket tournament server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"XFIVE_CONFIG"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server (default)",
				Action: serve,
			},
			{
				Name:  "seed",
				Usage: "create generated players spread over the qualifier rooms",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "players", Value: 24, Usage: "number of players to create"},
					&cli.BoolFlag{Name: "scores", Usage: "also fill random game scores"},
					&cli.Uint64Flag{Name: "seed", Usage: "random seed, 0 for a random one"},
				},
				Action: seed,
			},
			{
				Name:   "reconcile",
				Usage:  "recompute cached totals that disagree with scores and effects",
				Action: reconcile,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

//go:embed static/*
var embeddedStatic embed.FS
