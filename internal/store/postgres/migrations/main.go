package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the tournament schema migrations, run by cmd/bun.
var Migrations = migrate.NewMigrations()

func init() {
	if err := Migrations.DiscoverCaller(); err != nil {
		panic(err)
	}
}
