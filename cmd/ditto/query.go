package main

import (
	"context"
	"fmt"
	"os"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
	"github.com/urfave/cli/v3"
)

var query = &cli.Command{
	Name:        "query",
	ArgsUsage:   "[<filter-json>]",
	Usage:       "queries the database for events, takes a filter as argument",
	Description: "applies the filter to the configured database, printing one event per line.\n takes either a filter as an argument or reads a stream of filters from stdin.",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "maximum number of events per filter",
			Value: 1000,
		},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		store, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		hasError := false
		for line := range getStdinLinesOrFirstArgument(c) {
			filter, err := parseFilter(line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid filter '%s': %s\n", line, err)
				hasError = true
				continue
			}

			stream := store.Stream(ctx, []nostr.Filter{filter}, eventstore.QueryOptions{
				Limit:     int(c.Int("limit")),
				ChunkSize: 100,
			})
			for chunk := range stream.Chunks() {
				for _, evt := range chunk {
					fmt.Println(evt)
				}
			}
			if err := stream.Err(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to query '%s': %s\n", filter, err)
				hasError = true
			}
		}

		if hasError {
			os.Exit(123)
		}
		return nil
	},
}
