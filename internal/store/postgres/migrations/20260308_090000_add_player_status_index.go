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
		_, err := db.ExecContext(ctx, `
			CREATE INDEX IF NOT EXISTS idx_players_room_status ON players (room, status);
			CREATE INDEX IF NOT EXISTS idx_players_created_at ON players (created_at, id);
		`)
		if err != nil {
			return fmt.Errorf("failed to create player indexes: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `
			DROP INDEX IF EXISTS idx_players_created_at;
			DROP INDEX IF EXISTS idx_players_room_status;
		`)
		if err != nil {
			return fmt.Errorf("failed to drop player indexes: %w", err)
		}
		return nil
	})
}
