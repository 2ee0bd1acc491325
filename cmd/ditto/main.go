package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/soapbox-pub/ditto-sub000/config"
	"github.com/urfave/cli/v3"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

var app = &cli.Command{
	Name:      "ditto",
	Usage:     "a nostr relay backed by postgres or sqlite",
	UsageText: "ditto -c ./ditto.yaml <serve|query|count|remove|import|migrate> ...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the YAML configuration file",
		},
		&cli.StringFlag{
			Name:    "database",
			Aliases: []string{"d"},
			Usage:   "database connection uri or sqlite path, overrides the configuration",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error, overrides the configuration",
		},
	},
	Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
		if c.Args().First() == exampleConfig.Name {
			return ctx, nil
		}

		var err error
		cfg, err = config.Load(c.String("config"))
		if err != nil {
			return ctx, err
		}

		if db := c.String("database"); db != "" {
			cfg.DatabaseURL = db
		}
		if level := c.String("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		if err := config.Validate(cfg); err != nil {
			return ctx, err
		}

		log, err = newLogger(cfg.Logging)
		return ctx, err
	},
	Commands: []*cli.Command{
		serve,
		query,
		count,
		remove,
		import_,
		migrate,
		exampleConfig,
	},
	DefaultCommand: "serve",
}

func main() {
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(opts config.Logging) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Logger{}, err
	}

	var logger zerolog.Logger
	if opts.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
		}))
	}
	return logger.Level(level).With().Timestamp().Logger(), nil
}
