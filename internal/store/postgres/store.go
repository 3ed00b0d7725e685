// Package postgres stores the tournament in PostgreSQL through bun.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"xfive/internal/tournament"
)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	db.RegisterModel((*Player)(nil), (*AppState)(nil), (*WheelMode)(nil))
	return db, nil
}

// Store implements tournament.Store and tournament.Transactor.
type Store struct {
	db  *bun.DB
	idb bun.IDB
}

// New wraps db.
func New(db *bun.DB) *Store {
	return &Store{db: db, idb: db}
}

func (s *Store) ListPlayers(ctx context.Context) ([]tournament.Player, error) {
	var rows []Player
	err := s.idb.NewSelect().Model(&rows).OrderExpr("created_at ASC, id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	out := make([]tournament.Player, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) GetPlayer(ctx context.Context, id string) (tournament.Player, error) {
	row := new(Player)
	err := s.idb.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tournament.Player{}, fmt.Errorf("player %s: %w", id, tournament.ErrNotFound)
		}
		return tournament.Player{}, fmt.Errorf("failed to get player: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) CreatePlayer(ctx context.Context, p tournament.Player) error {
	row := playerFromDomain(p)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if _, err := s.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

// UpdatePlayer writes only the fields set in u.
func (s *Store) UpdatePlayer(ctx context.Context, id string, u tournament.PlayerUpdate) error {
	q := s.idb.NewUpdate().Model((*Player)(nil)).Where("id = ?", id)
	set := 0
	if u.Name != nil {
		q = q.Set("name = ?", *u.Name)
		set++
	}
	if u.Nick != nil {
		q = q.Set("nick = ?", *u.Nick)
		set++
	}
	if u.Room != nil {
		q = q.Set("room = ?", string(*u.Room))
		set++
	}
	if u.Scores != nil {
		scores := *u.Scores
		if scores == nil {
			scores = []int{}
		}
		q = q.Set("scores = ?", pgdialect.Array(scores))
		set++
	}
	if u.TotalScore != nil {
		q = q.Set("total_score = ?", *u.TotalScore)
		set++
	}
	if u.Status != nil {
		q = q.Set("status = ?", string(*u.Status))
		set++
	}
	switch {
	case u.WheelEffect != nil:
		raw, err := json.Marshal(u.WheelEffect)
		if err != nil {
			return fmt.Errorf("failed to encode wheel effect: %w", err)
		}
		q = q.Set("wheel_effect = ?::jsonb", string(raw))
		set++
	case u.ClearWheelEffect:
		q = q.Set("wheel_effect = NULL")
		set++
	}
	if set == 0 {
		_, err := s.GetPlayer(ctx, id)
		return err
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}
	return expectRow(res, "player", id)
}

func (s *Store) DeletePlayer(ctx context.Context, id string) error {
	res, err := s.idb.NewDelete().Model((*Player)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return expectRow(res, "player", id)
}

// GetAppState returns the singleton row, inserting the defaults when it does not exist yet.
func (s *Store) GetAppState(ctx context.Context) (tournament.AppState, error) {
	row, err := s.appState(ctx, false)
	if err != nil {
		return tournament.AppState{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateAppState(ctx context.Context, u tournament.AppStateUpdate) error {
	return s.InTx(ctx, func(ctx context.Context, tx tournament.Store) error {
		ts := tx.(*Store)
		row, err := ts.appState(ctx, true)
		if err != nil {
			return err
		}
		state := row.toDomain()
		u.Apply(&state)
		next := appStateFromDomain(state)
		next.UpdatedAt = time.Now().UTC()
		_, err = ts.idb.NewUpdate().Model(next).WherePK().Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update app state: %w", err)
		}
		return nil
	})
}

func (s *Store) appState(ctx context.Context, forUpdate bool) (*AppState, error) {
	defaults := appStateFromDomain(tournament.DefaultAppState())
	_, err := s.idb.NewInsert().Model(defaults).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize app state: %w", err)
	}
	row := new(AppState)
	q := s.idb.NewSelect().Model(row).Where("id = ?", appStateID)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to get app state: %w", err)
	}
	return row, nil
}

func (s *Store) ListWheelModes(ctx context.Context) ([]tournament.WheelMode, error) {
	var rows []WheelMode
	if err := s.idb.NewSelect().Model(&rows).OrderExpr("created_at ASC, id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list wheel modes: %w", err)
	}
	out := make([]tournament.WheelMode, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// SaveWheelMode inserts m or updates the name and description of an existing id.
func (s *Store) SaveWheelMode(ctx context.Context, m tournament.WheelMode) error {
	row := &WheelMode{ID: m.ID, Name: m.Name, Description: m.Description, CreatedAt: time.Now().UTC()}
	_, err := s.idb.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("description = EXCLUDED.description").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save wheel mode: %w", err)
	}
	return nil
}

func (s *Store) DeleteWheelMode(ctx context.Context, id string) error {
	res, err := s.idb.NewDelete().Model((*WheelMode)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete wheel mode: %w", err)
	}
	return expectRow(res, "wheel mode", id)
}

// InTx runs fn inside a database transaction. Nested calls reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx tournament.Store) error) error {
	if _, nested := s.idb.(bun.Tx); nested {
		return fn(ctx, s)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: s.db, idb: tx})
	})
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, tournament.ErrNotFound)
	}
	return nil
}
