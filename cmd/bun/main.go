package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"

	"xfive/internal/config"
	"xfive/internal/store/postgres"
	"xfive/internal/store/postgres/migrations"
)

func main() {
	cliApp := &cli.App{
		Name: "bun",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to the configuration file"},
		},
		Commands: []*cli.Command{
			newDBCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withMigrator connects using the configured DATABASE_URL and hands fn a migrator.
func withMigrator(c *cli.Context, fn func(ctx context.Context, m *migrate.Migrator) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := postgres.Open(c.Context, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(c.Context, migrate.NewMigrator(db, migrations.Migrations))
}

func newDBCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, m *migrate.Migrator) error {
						fmt.Println("Initializing migration tables")
						return m.Init(ctx)
					})
				},
			},
			{
				Name:  "migrate",
				Usage: "migrate database",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, m *migrate.Migrator) error {
						if err := m.Lock(ctx); err != nil {
							return err
						}
						defer m.Unlock(ctx) //nolint:errcheck

						group, err := m.Migrate(ctx)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Println("No new migrations to run")
						} else {
							fmt.Printf("Migrated to %s\n", group)
						}
						return nil
					})
				},
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, m *migrate.Migrator) error {
						if err := m.Lock(ctx); err != nil {
							return err
						}
						defer m.Unlock(ctx) //nolint:errcheck

						group, err := m.Rollback(ctx)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Println("No groups to roll back")
						} else {
							fmt.Printf("Rolled back %s\n", group)
						}
						return nil
					})
				},
			},
			{
				Name:  "create_go",
				Usage: "create Go migration",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, m *migrate.Migrator) error {
						name := strings.Join(c.Args().Slice(), "_")
						mf, err := m.CreateGoMigration(ctx, name)
						if err != nil {
							return err
						}
						fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
						return nil
					})
				},
			},
			{
				Name:  "create_sql",
				Usage: "create up and down SQL migrations",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, m *migrate.Migrator) error {
						name := strings.Join(c.Args().Slice(), "_")
						files, err := m.CreateSQLMigrations(ctx, name)
						if err != nil {
							return err
						}
						for _, mf := range files {
							fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
						}
						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(ctx context.Context, m *migrate.Migrator) error {
						ms, err := m.MigrationsWithStatus(ctx)
						if err != nil {
							return err
						}
						fmt.Printf("Migrations: %s\n", ms)
						fmt.Printf("Applied: %s\n", ms.Applied())
						fmt.Printf("Unapplied: %s\n", ms.Unapplied())
						return nil
					})
				},
			},
		},
	}
}
