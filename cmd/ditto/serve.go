package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/soapbox-pub/ditto-sub000/cache/lru"
	"github.com/soapbox-pub/ditto-sub000/eventstore/bluge"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqldb"
	"github.com/soapbox-pub/ditto-sub000/eventstore/sqlstore"
	"github.com/soapbox-pub/ditto-sub000/keyer"
	"github.com/soapbox-pub/ditto-sub000/linkpreview"
	"github.com/soapbox-pub/ditto-sub000/nip05"
	"github.com/soapbox-pub/ditto-sub000/pipeline"
	"github.com/soapbox-pub/ditto-sub000/policies"
	"github.com/soapbox-pub/ditto-sub000/realtime"
	"github.com/soapbox-pub/ditto-sub000/realtime/pgnotify"
	"github.com/soapbox-pub/ditto-sub000/realtime/redisnotify"
	"github.com/soapbox-pub/ditto-sub000/relay"
	"github.com/soapbox-pub/ditto-sub000/stats"
	"github.com/soapbox-pub/ditto-sub000/workers"
	"github.com/urfave/cli/v3"
)

var serve = &cli.Command{
	Name:  "serve",
	Usage: "runs the relay",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Aliases: []string{"l"},
			Usage:   "address to listen on, overrides the configuration",
		},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		if addr := c.String("listen"); addr != "" {
			cfg.Listen = addr
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		sk, err := cfg.AdminSecretKey()
		if err != nil {
			return err
		}
		admin := sk.Public()

		db, err := sqldb.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		notifier, err := openNotifier(db)
		if err != nil {
			return err
		}
		if closer, ok := notifier.(io.Closer); ok {
			defer closer.Close()
		}

		registry := realtime.NewRegistry()
		registry.MaxAge = cfg.Realtime.MaxAge
		registry.Buffer = cfg.Realtime.Buffer
		registry.Logger = &log

		agg := stats.New(db)
		store := &sqlstore.SQLStore{
			DB:        db,
			Admin:     admin,
			Stats:     agg,
			Fulfiller: registry,
			Notifier:  notifier,
			Domains:   agg,
			Logger:    &log,
		}

		if path := cfg.Search.IndexPath; path != "" {
			if path == "memory" {
				path = ""
			}
			index := &bluge.SearchIndex{Path: path, Logger: &log}
			if err := index.Init(); err != nil {
				return fmt.Errorf("failed to open search index: %w", err)
			}
			defer index.Close()
			store.Search = index
		}

		if err := store.Init(ctx); err != nil {
			return err
		}
		defer store.Close()

		verifier := workers.NewVerifyPool(cfg.Ingest.VerifyWorkers)
		verifier.Timeout = cfg.Ingest.VerifyTimeout
		defer verifier.Close()

		p := pipeline.New(store, admin, verifier)
		p.Seen = lru.New[nostr.ID, struct{}](cfg.Ingest.SeenCacheSize, 0)
		store.Seen = p.Seen
		p.Signer = keyer.NewPlainKeySigner(sk)
		p.Stats = agg
		p.MaxFuture = cfg.Ingest.MaxFuture
		p.MaxEphemeralAge = cfg.Ingest.MaxEphemeralAge
		p.SideEffectTimeout = cfg.Ingest.SideEffectTimeout
		p.Logger = &log

		if cfg.NIP05.Enabled {
			identities := nip05.NewVerifier()
			identities.TTL = cfg.NIP05.TTL
			identities.Timeout = cfg.NIP05.Timeout
			p.Identities = identities
		}
		if cfg.LinkPreviews.Enabled {
			previews := linkpreview.New()
			previews.TTL = cfg.LinkPreviews.TTL
			previews.Timeout = cfg.LinkPreviews.Timeout
			previews.Logger = &log
			p.Previews = previews
		}

		rl := relay.New(p, store, registry)
		rl.ServiceURL = cfg.ServiceURL
		rl.QueryTimeout = cfg.Query.Timeout
		rl.MaxLimit = cfg.Query.MaxLimit
		rl.ChunkSize = cfg.Query.ChunkSize
		rl.Logger = &log
		rl.Info.Name = cfg.Info.Name
		rl.Info.Description = cfg.Info.Description
		rl.Info.Contact = cfg.Info.Contact
		rl.Info.Icon = cfg.Info.Icon
		rl.Info.Banner = cfg.Info.Banner
		rl.Info.PubKey = admin.Hex()

		switch cfg.Policy.Mode {
		case "strict":
			p.Policy = workers.FuncPolicy(policies.EventRejectionStrictDefaults)
			rl.RejectFilter = policies.RequestRejectionStrictDefaults
			rl.RejectConnection = policies.ConnectionRejectionStrictDefaults
		case "plugin":
			plugin := workers.NewPipePolicy(cfg.Policy.Command, cfg.Policy.Args...)
			plugin.Timeout = cfg.Policy.Timeout
			plugin.Source = relay.GetIP
			plugin.Logger = &log
			p.Policy = plugin
		}

		wakeup := &realtime.Wakeup{
			Notifier:  notifier,
			Store:     store,
			Fulfiller: registry,
			Seen:      p.Seen,
			Logger:    &log,
		}
		go func() {
			if err := wakeup.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("realtime wake-up stopped")
			}
		}()

		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           rl,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errs := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.Listen).Str("db", db.Dialect.String()).Msg("relay running")
			errs <- server.ListenAndServe()
		}()

		select {
		case err := <-errs:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("failed to shut down cleanly")
		}
		p.Wait()

		return nil
	},
}

func openNotifier(db *sqldb.DB) (realtime.Notifier, error) {
	switch cfg.Realtime.Notifier {
	case "postgres":
		if db.Dialect != sqldb.Postgres {
			return nil, fmt.Errorf("the postgres notifier needs a postgres database, not %s", db.Dialect)
		}
		n := pgnotify.New(cfg.DatabaseURL)
		n.Logger = &log
		return n, nil
	case "redis":
		return redisnotify.New(cfg.Realtime.RedisURL)
	default:
		return &realtime.LocalNotifier{}, nil
	}
}
