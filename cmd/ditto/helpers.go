package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/mailru/easyjson"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqldb"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqlstore"
	"github.com/soapbox-pub/ditto-sub000/stats"
	"github.com/urfave/cli/v3"
)

// openStore opens the configured database with stats kept up to date, for the administrative
// commands. The realtime pieces are only wired by serve.
func openStore(ctx context.Context) (*sqlstore.SQLStore, *stats.Aggregator, error) {
	db, err := sqldb.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	sk, err := cfg.AdminSecretKey()
	if err != nil {
		return nil, nil, err
	}

	agg := stats.New(db)
	store := &sqlstore.SQLStore{
		DB:      db,
		Admin:   sk.Public(),
		Stats:   agg,
		Domains: agg,
		Logger:  &log,
	}
	if err := store.Init(ctx); err != nil {
		return nil, nil, err
	}

	return store, agg, nil
}

func getStdinLinesOrFirstArgument(c *cli.Command) chan string {
	// try the first argument
	if c.Args().Len() > 0 {
		ch := make(chan string, 1)
		ch <- c.Args().First()
		close(ch)
		return ch
	}

	// try the stdin
	ch := make(chan string)
	go writeStdinLinesOrNothing(ch)
	return ch
}

func getFileLines(path string) chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open '%s': %s\n", path, err)
			return
		}
		defer f.Close()
		scanLines(f, ch)
	}()
	return ch
}

func writeStdinLinesOrNothing(ch chan string) {
	defer close(ch)
	if stat, _ := os.Stdin.Stat(); stat.Mode()&os.ModeCharDevice == 0 {
		// piped
		scanLines(os.Stdin, ch)
	}
}

func scanLines(f *os.File, ch chan string) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 16*1024*1024), 256*1024*1024)
	for scanner.Scan() {
		ch <- scanner.Text()
	}
}

func parseFilter(line string) (nostr.Filter, error) {
	filter := nostr.Filter{}
	err := easyjson.Unmarshal([]byte(line), &filter)
	return filter, err
}
