package main

import (
	"context"
	"fmt"
	"os"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/urfave/cli/v3"
)

var remove = &cli.Command{
	Name:        "remove",
	ArgsUsage:   "[<filter-json>]",
	Usage:       "physically deletes all events that match a given filter",
	Description: "takes a filter either as an argument or reads a stream of filters from stdin and removes the matching events from the configured database.\nremoved events leave no trace and may be published again.",
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
			if len(filter.String()) <= 2 {
				fmt.Fprintf(os.Stderr, "refusing to remove everything with an empty filter\n")
				hasError = true
				continue
			}

			if err := store.Remove(ctx, []nostr.Filter{filter}); err != nil {
				fmt.Fprintf(os.Stderr, "error removing '%s': %s\n", filter, err)
				hasError = true
				continue
			}
			fmt.Fprintf(os.Stderr, "removed events matching %s\n", filter)
		}

		if hasError {
			os.Exit(123)
		}
		return nil
	},
}
