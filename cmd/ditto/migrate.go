package main

import (
	"context"
	"fmt"
	"os"

	"github.com/soapbox-pub/ditto-sub000/config"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqldb"
	"github.com/urfave/cli/v3"
)

var migrate = &cli.Command{
	Name:  "migrate",
	Usage: "creates or updates the database schema",
	Action: func(ctx context.Context, c *cli.Command) error {
		db, err := sqldb.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate %s database: %w", db.Dialect, err)
		}
		log.Info().Str("dialect", db.Dialect.String()).Msg("database is up to date")
		return nil
	},
}

var exampleConfig = &cli.Command{
	Name:  "example-config",
	Usage: "prints an annotated configuration file with the default values",
	Action: func(ctx context.Context, c *cli.Command) error {
		data, err := config.GetExampleConfig()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}
