package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mailru/easyjson"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/urfave/cli/v3"
)

var import_ = &cli.Command{
	Name:        "import",
	ArgsUsage:   "[<event-json>]",
	Usage:       "stores events",
	Description: "takes either an event as an argument, reads a stream of events from stdin, or from a file specified with --file, and writes those to the configured database.\nsignatures are checked, replacements and deletions are applied but relay policies are not.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "file to read events from",
		},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		store, _, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		var lines chan string
		if file := c.String("file"); file != "" {
			lines = getFileLines(file)
		} else {
			lines = getStdinLinesOrFirstArgument(c)
		}

		hasError := false
		for line := range lines {
			var evt nostr.Event
			if err := easyjson.Unmarshal([]byte(line), &evt); err != nil {
				fmt.Fprintf(os.Stderr, "invalid event '%s': %s\n", line, err)
				hasError = true
				continue
			}
			if !evt.CheckID() || !evt.VerifySignature() {
				fmt.Fprintf(os.Stderr, "bad signature on %s\n", evt.ID.Hex())
				hasError = true
				continue
			}

			if err := store.Write(ctx, evt); err != nil {
				fmt.Fprintf(os.Stderr, "failed to save event '%s': %s\n", evt.ID.Hex(), err)
				hasError = true
				continue
			}

			fmt.Fprintf(os.Stderr, "saved %s\n", evt.ID.Hex())
		}

		if hasError {
			os.Exit(123)
		}
		return nil
	},
}
