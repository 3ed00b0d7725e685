// Package memory is an in-process tournament store used for demos, seeding and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"xfive/internal/tournament"
)

// Store keeps tournament data in memory. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

type dataset struct {
	order   []string
	players map[string]tournament.Player
	state   *tournament.AppState
	modes   []tournament.WheelMode
}

func newDataset() *dataset {
	return &dataset{players: map[string]tournament.Player{}}
}

func (d *dataset) clone() *dataset {
	out := &dataset{
		order:   slices.Clone(d.order),
		players: make(map[string]tournament.Player, len(d.players)),
		modes:   slices.Clone(d.modes),
	}
	for id, p := range d.players {
		out.players[id] = p.Clone()
	}
	if d.state != nil {
		s := d.state.Clone()
		out.state = &s
	}
	return out
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newDataset()}
}

func (s *Store) ListPlayers(_ context.Context) ([]tournament.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tournament.Player, 0, len(s.data.order))
	for _, id := range s.data.order {
		out = append(out, s.data.players[id].Clone())
	}
	return out, nil
}

func (s *Store) GetPlayer(_ context.Context, id string) (tournament.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.players[id]
	if !ok {
		return tournament.Player{}, fmt.Errorf("player %s: %w", id, tournament.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) CreatePlayer(_ context.Context, p tournament.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.players[p.ID]; ok {
		return fmt.Errorf("player %s already exists", p.ID)
	}
	s.data.order = append(s.data.order, p.ID)
	s.data.players[p.ID] = p.Clone()
	return nil
}

func (s *Store) UpdatePlayer(_ context.Context, id string, u tournament.PlayerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.players[id]
	if !ok {
		return fmt.Errorf("player %s: %w", id, tournament.ErrNotFound)
	}
	u.Apply(&p)
	s.data.players[id] = p
	return nil
}

func (s *Store) DeletePlayer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.players[id]; !ok {
		return fmt.Errorf("player %s: %w", id, tournament.ErrNotFound)
	}
	delete(s.data.players, id)
	s.data.order = slices.DeleteFunc(s.data.order, func(v string) bool { return v == id })
	return nil
}

func (s *Store) GetAppState(_ context.Context) (tournament.AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked().Clone(), nil
}

func (s *Store) UpdateAppState(_ context.Context, u tournament.AppStateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Apply(s.stateLocked())
	return nil
}

// stateLocked returns the singleton, creating it with defaults on first access.
func (s *Store) stateLocked() *tournament.AppState {
	if s.data.state == nil {
		st := tournament.DefaultAppState()
		s.data.state = &st
	}
	return s.data.state
}

func (s *Store) ListWheelModes(_ context.Context) ([]tournament.WheelMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.modes), nil
}

// SaveWheelMode inserts m or replaces the mode with the same id in place.
func (s *Store) SaveWheelMode(_ context.Context, m tournament.WheelMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.data.modes, func(w tournament.WheelMode) bool { return w.ID == m.ID }); i >= 0 {
		s.data.modes[i] = m
		return nil
	}
	s.data.modes = append(s.data.modes, m)
	return nil
}

func (s *Store) DeleteWheelMode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.data.modes, func(w tournament.WheelMode) bool { return w.ID == id })
	if i < 0 {
		return fmt.Errorf("wheel mode %s: %w", id, tournament.ErrNotFound)
	}
	s.data.modes = slices.Delete(s.data.modes, i, i+1)
	return nil
}

// InTx runs fn against a private copy of the data and swaps it in when fn succeeds.
// Other callers block until the transaction ends.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx tournament.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{data: s.data.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.mu.Lock()
	s.data = tx.data
	tx.mu.Unlock()
	return nil
}
