package main

import (
	"context"
	"fmt"
	"os"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore"
	"github.com/urfave/cli/v3"
)

var count = &cli.Command{
	Name:        "count",
	ArgsUsage:   "[<filter-json>]",
	Usage:       "counts all events that match a given filter",
	Description: "applies the filter to the configured database, counting the results",
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

			res, err := store.Count(ctx, []nostr.Filter{filter}, eventstore.QueryOptions{})
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to count '%s': %s\n", filter, err)
				hasError = true
				continue
			}
			fmt.Println(res)
		}

		if hasError {
			os.Exit(123)
		}
		return nil
	},
}
