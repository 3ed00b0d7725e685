package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/urfave/cli/v2"

	"xfive/internal/config"
	"xfive/internal/store/memory"
	"xfive/internal/store/postgres"
	"xfive/internal/telemetry"
	"xfive/internal/tournament"
)

func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (tournament.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using postgres store")
		return postgres.New(db), func() {
			if err := db.Close(); err != nil {
				logger.Error("Error closing database connection", slog.Any("error", err))
			}
		}, nil
	default:
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil
	}
}

func seed(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := tournament.NewEngine(st, tournament.WithLogger(logger))
	faker := gofakeit.New(c.Uint64("seed"))
	rooms := append(append([]tournament.Room{}, tournament.Day1Rooms...), tournament.Day2Rooms...)

	n := c.Int("players")
	for i := range n {
		room := rooms[i%len(rooms)]
		p, err := engine.AddPlayer(c.Context, faker.FirstName()+" "+faker.LastName(), faker.Username(), room)
		if err != nil {
			return fmt.Errorf("seed player %d: %w", i+1, err)
		}
		if !c.Bool("scores") {
			continue
		}
		for g := range cfg.Games {
			if _, err := engine.UpdateScore(c.Context, p.ID, g, faker.IntRange(0, 100)); err != nil {
				return fmt.Errorf("seed scores for %s: %w", p.ID, err)
			}
		}
	}
	logger.Info("Seeded players", slog.Int("players", n))
	return nil
}

func reconcile(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	fixed, err := tournament.NewEngine(st, tournament.WithLogger(logger)).Reconcile(c.Context)
	if err != nil {
		return err
	}
	logger.Info("Reconcile finished", slog.Int("fixed", fixed))
	return nil
}
