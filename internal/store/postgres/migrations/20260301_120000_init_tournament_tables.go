package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	if err := Migrations.DiscoverCaller(); err != nil {
		panic(err)
	}
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating tournament tables...")

		_, err := db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS players (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				nick TEXT NOT NULL DEFAULT '',
				room TEXT NOT NULL,
				scores INTEGER[] NOT NULL DEFAULT '{}',
				total_score INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'active',
				wheel_effect JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_players_room ON players (room);

			CREATE TABLE IF NOT EXISTS app_state (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				stage TEXT NOT NULL DEFAULT 'QUALIFIERS_D1',
				active_room_viewer TEXT NOT NULL DEFAULT '1',
				active_room_modes JSONB NOT NULL DEFAULT '{}'::jsonb,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS wheel_modes (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`)
		if err != nil {
			return fmt.Errorf("failed to create tournament tables: %w", err)
		}

		fmt.Println("Tournament tables created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping tournament tables...")

		_, err := db.ExecContext(ctx, `
			DROP TABLE IF EXISTS wheel_modes;
			DROP TABLE IF EXISTS app_state;
			DROP TABLE IF EXISTS players;
		`)
		if err != nil {
			return fmt.Errorf("failed to drop tournament tables: %w", err)
		}
		return nil
	})
}
