package tournament

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ------------------------
// Fake Store
// ------------------------

// FakeStore keeps data in maps and lets tests replace single methods through the Func fields.
type FakeStore struct {
	mu      sync.Mutex
	trace   []string
	order   []string
	players map[string]Player
	state   *AppState
	modes   []WheelMode

	ListPlayersFunc    func(ctx context.Context) ([]Player, error)
	UpdatePlayerFunc   func(ctx context.Context, id string, u PlayerUpdate) error
	UpdateAppStateFunc func(ctx context.Context, u AppStateUpdate) error
}

func NewFakeStore(players ...Player) *FakeStore {
	f := &FakeStore{players: map[string]Player{}}
	for _, p := range players {
		f.order = append(f.order, p.ID)
		f.players[p.ID] = p.Clone()
	}
	return f
}

func (f *FakeStore) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of write calls made to the fake.
func (f *FakeStore) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.trace)
}

func (f *FakeStore) ListPlayers(ctx context.Context) ([]Player, error) {
	if f.ListPlayersFunc != nil {
		return f.ListPlayersFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Player, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.players[id].Clone())
	}
	return out, nil
}

func (f *FakeStore) GetPlayer(_ context.Context, id string) (Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return Player{}, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

func (f *FakeStore) CreatePlayer(_ context.Context, p Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreatePlayer:" + p.ID)
	f.order = append(f.order, p.ID)
	f.players[p.ID] = p.Clone()
	return nil
}

func (f *FakeStore) UpdatePlayer(ctx context.Context, id string, u PlayerUpdate) error {
	if f.UpdatePlayerFunc != nil {
		if err := f.UpdatePlayerFunc(ctx, id, u); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	f.record("UpdatePlayer:" + id)
	u.Apply(&p)
	f.players[id] = p
	return nil
}

func (f *FakeStore) DeletePlayer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.players[id]; !ok {
		return fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	f.record("DeletePlayer:" + id)
	delete(f.players, id)
	f.order = slices.DeleteFunc(f.order, func(s string) bool { return s == id })
	return nil
}

func (f *FakeStore) GetAppState(_ context.Context) (AppState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		s := DefaultAppState()
		f.state = &s
	}
	return f.state.Clone(), nil
}

func (f *FakeStore) UpdateAppState(ctx context.Context, u AppStateUpdate) error {
	if f.UpdateAppStateFunc != nil {
		if err := f.UpdateAppStateFunc(ctx, u); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		s := DefaultAppState()
		f.state = &s
	}
	f.record("UpdateAppState")
	u.Apply(f.state)
	return nil
}

func (f *FakeStore) ListWheelModes(_ context.Context) ([]WheelMode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.modes), nil
}

func (f *FakeStore) SaveWheelMode(_ context.Context, m WheelMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SaveWheelMode:" + m.ID)
	for i := range f.modes {
		if f.modes[i].ID == m.ID {
			f.modes[i] = m
			return nil
		}
	}
	f.modes = append(f.modes, m)
	return nil
}

func (f *FakeStore) DeleteWheelMode(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.modes)
	f.modes = slices.DeleteFunc(f.modes, func(m WheelMode) bool { return m.ID == id })
	if len(f.modes) == n {
		return fmt.Errorf("wheel mode %s: %w", id, ErrNotFound)
	}
	f.record("DeleteWheelMode:" + id)
	return nil
}

// player returns the stored copy of id for assertions.
func (f *FakeStore) player(id string) Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[id].Clone()
}

// ------------------------
// Fake Transactor
// ------------------------

// FakeTxStore records InTx calls and rolls back by restoring a copy of the players.
type FakeTxStore struct {
	*FakeStore
	txCalls int
}

func (f *FakeTxStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	f.mu.Lock()
	f.txCalls++
	saved := make(map[string]Player, len(f.players))
	for id, p := range f.players {
		saved[id] = p.Clone()
	}
	f.mu.Unlock()

	if err := fn(ctx, f.FakeStore); err != nil {
		f.mu.Lock()
		f.players = saved
		f.mu.Unlock()
		return err
	}
	return nil
}

// ------------------------
// Scripted Randomizer
// ------------------------

// scriptedRNG replays fixed draws in order.
type scriptedRNG struct {
	ints   []int
	floats []float64
}

func (r *scriptedRNG) IntN(n int) int {
	if len(r.ints) == 0 {
		panic("scriptedRNG: out of ints")
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRNG) Float64() float64 {
	if len(r.floats) == 0 {
		panic("scriptedRNG: out of floats")
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

// ------------------------
// Fake Metrics
// ------------------------

type fakeMetrics struct {
	mu      sync.Mutex
	ops     map[string][]string
	effects []EffectType
	moves   map[MoveKind]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{ops: map[string][]string{}, moves: map[MoveKind]int{}}
}

func (m *fakeMetrics) RecordOperation(op, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op] = append(m.ops[op], result)
}

func (m *fakeMetrics) RecordWheelEffect(effect EffectType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.effects = append(m.effects, effect)
}

func (m *fakeMetrics) RecordMove(kind MoveKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moves[kind]++
}
