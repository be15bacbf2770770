package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OpenAgentsInc/pylon/eventstore"
	"github.com/OpenAgentsInc/pylon/eventstore/badger"
	"github.com/OpenAgentsInc/pylon/eventstore/slicestore"
	"github.com/OpenAgentsInc/pylon/eventstore/sqlite"
	"github.com/OpenAgentsInc/pylon/relay"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

var app = &cli.Command{
	Name:      "pylon-relay",
	Usage:     "a nostr relay with pluggable event storage",
	UsageText: "pylon-relay -d ./relay.db",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "hostname",
			Usage:   "hostname to listen on",
			Value:   "0.0.0.0",
			Sources: cli.EnvVars("HOSTNAME"),
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "port to listen on",
			Value:   7447,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "store",
			Aliases: []string{"d"},
			Usage:   "path to the database file or directory",
			Sources: cli.EnvVars("STORE_PATH"),
		},
		&cli.StringFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Usage:   "store type ('sqlite', 'badger', 'memory')",
			Value:   "sqlite",
			Sources: cli.EnvVars("STORE_TYPE"),
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "relay name served in the NIP-11 document",
			Value: "pylon",
		},
		&cli.StringFlag{
			Name:  "description",
			Usage: "relay description served in the NIP-11 document",
		},
		&cli.IntFlag{
			Name:  "max-limit",
			Usage: "maximum number of events returned per filter",
			Value: 500,
		},
		&cli.IntFlag{
			Name:  "readers",
			Usage: "size of the sqlite read connection pool",
			Value: 4,
		},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		var store eventstore.Store
		switch typ := c.String("type"); typ {
		case "sqlite":
			if c.String("store") == "" {
				return fmt.Errorf("--store path is required for the sqlite store")
			}
			store = &sqlite.SQLiteBackend{
				Path:           c.String("store"),
				MaxLimit:       int(c.Int("max-limit")),
				ReaderPoolSize: int(c.Int("readers")),
				Logger:         &log,
			}
		case "badger":
			if c.String("store") == "" {
				return fmt.Errorf("--store path is required for the badger store")
			}
			store = &badger.BadgerBackend{
				Path:     c.String("store"),
				MaxLimit: int(c.Int("max-limit")),
			}
		case "memory":
			store = &slicestore.SliceStore{MaxLimit: int(c.Int("max-limit"))}
		default:
			return fmt.Errorf("unknown store type '%s'", typ)
		}

		if err := store.Init(); err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer store.Close()

		rl := relay.NewRelay()
		rl.Info.Name = c.String("name")
		rl.Info.Description = c.String("description")
		rl.UseEventstore(store)

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().
				Str("host", c.String("hostname")).
				Int("port", int(c.Int("port"))).
				Str("store", c.String("type")).
				Msg("relay listening")
			return rl.Start(c.String("hostname"), int(c.Int("port")))
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			rl.Shutdown(shutdownCtx)
			return nil
		})

		return g.Wait()
	},
}

func main() {
	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("exited with error")
		os.Exit(1)
	}
}
