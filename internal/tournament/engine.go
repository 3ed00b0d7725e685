package tournament

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

// MaxGames bounds the game index accepted by UpdateScore.
const MaxGames = 10

// resetConcurrency caps parallel writes while clearing a room's effects.
const resetConcurrency = 4

// Engine applies tournament operations through a Store.
// Mutating operations are serialized within the process.
type Engine struct {
	store   Store
	rng     Randomizer
	logger  *slog.Logger
	metrics Metrics
	tracer  trace.Tracer
	now     func() time.Time

	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

func WithRandomizer(rng Randomizer) Option { return func(e *Engine) { e.rng = rng } }
func WithLogger(l *slog.Logger) Option     { return func(e *Engine) { e.logger = l } }
func WithMetrics(m Metrics) Option         { return func(e *Engine) { e.metrics = m } }
func WithTracer(t trace.Tracer) Option     { return func(e *Engine) { e.tracer = t } }
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		rng:     NewRandomizer(),
		logger:  slog.Default(),
		metrics: noopMetrics{},
		tracer:  noop.NewTracerProvider().Tracer("tournament"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// inTx runs fn in a transaction when the store supports one, otherwise directly on the store.
func (e *Engine) inTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if tx, ok := e.store.(Transactor); ok {
		return tx.InTx(ctx, fn)
	}
	return fn(ctx, e.store)
}

// Snapshot reads players, app state and the wheel-mode catalog.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	players, err := e.store.ListPlayers(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list players: %w", err)
	}
	state, err := e.store.GetAppState(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get app state: %w", err)
	}
	modes, err := e.store.ListWheelModes(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list wheel modes: %w", err)
	}
	return Snapshot{Players: players, State: state, Modes: modes}, nil
}

// PlayersInRoom returns the ranked players of room.
func (e *Engine) PlayersInRoom(ctx context.Context, room Room) ([]Player, error) {
	if !room.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}
	players, err := e.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return RankRoom(players, room), nil
}

// Standings returns the leaderboard of room under the current stage.
func (e *Engine) Standings(ctx context.Context, room Room) ([]Standing, error) {
	if !room.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Standings(room), nil
}

// AddPlayer registers an active player with no scores.
func (e *Engine) AddPlayer(ctx context.Context, name, nick string, room Room) (Player, error) {
	name, nick = strings.TrimSpace(name), strings.TrimSpace(nick)
	if name == "" {
		return Player{}, ErrEmptyName
	}
	if !room.Valid() {
		return Player{}, fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}

	var p Player
	_, err := e.withTelemetry(ctx, "AddPlayer", []attribute.KeyValue{attribute.String("room", string(room))}, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		p = Player{
			ID:        uuid.NewString(),
			Name:      name,
			Nick:      nick,
			Room:      room,
			Scores:    []int{},
			Status:    StatusActive,
			CreatedAt: e.now(),
		}
		if err := e.store.CreatePlayer(ctx, p); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return Player{}, err
	}
	return p, nil
}

// PlayerEdit is an admin edit of a player's identity or room. Nil fields are left untouched.
type PlayerEdit struct {
	Name *string
	Nick *string
	Room *Room
}

// UpdatePlayer applies edit. A missing player is a no-op and reports false.
func (e *Engine) UpdatePlayer(ctx context.Context, id string, edit PlayerEdit) (bool, error) {
	u := PlayerUpdate{Nick: edit.Nick, Room: edit.Room}
	if edit.Name != nil {
		name := strings.TrimSpace(*edit.Name)
		if name == "" {
			return false, ErrEmptyName
		}
		u.Name = &name
	}
	if edit.Room != nil && !edit.Room.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidRoom, *edit.Room)
	}

	return e.withTelemetry(ctx, "UpdatePlayer", []attribute.KeyValue{attribute.String("player_id", id)}, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return skipNotFound(e.store.UpdatePlayer(ctx, id, u))
	})
}

// DeletePlayer removes a player. A missing player is a no-op and reports false.
func (e *Engine) DeletePlayer(ctx context.Context, id string) (bool, error) {
	return e.withTelemetry(ctx, "DeletePlayer", []attribute.KeyValue{attribute.String("player_id", id)}, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return skipNotFound(e.store.DeletePlayer(ctx, id))
	})
}

// UpdateScore records score for the given game and persists the recomputed total in the same write.
// A missing player is a no-op and reports false.
func (e *Engine) UpdateScore(ctx context.Context, id string, game, score int) (bool, error) {
	if game < 0 || game >= MaxGames {
		return false, fmt.Errorf("%w: %d", ErrInvalidGame, game)
	}
	if score < 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}

	attrs := []attribute.KeyValue{
		attribute.String("player_id", id),
		attribute.Int("game", game),
		attribute.Int("score", score),
	}
	return e.withTelemetry(ctx, "UpdateScore", attrs, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		p, err := e.store.GetPlayer(ctx, id)
		if err != nil {
			return skipNotFound(err)
		}
		scores := withScore(p.Scores, game, score)
		total := EffectiveTotal(scores, p.WheelEffect)
		return skipNotFound(e.store.UpdatePlayer(ctx, id, PlayerUpdate{Scores: &scores, TotalScore: &total}))
	})
}

// SetStage switches the tournament stage. Any stage may follow any other.
func (e *Engine) SetStage(ctx context.Context, stage Stage) error {
	if _, err := ParseStage(string(stage)); err != nil {
		return err
	}
	_, err := e.withTelemetry(ctx, "SetStage", []attribute.KeyValue{attribute.String("stage", string(stage))}, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return true, e.store.UpdateAppState(ctx, AppStateUpdate{Stage: &stage})
	})
	return err
}

// SetViewerRoom chooses the room shown to viewers who did not pick one.
func (e *Engine) SetViewerRoom(ctx context.Context, room Room) error {
	if !room.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}
	_, err := e.withTelemetry(ctx, "SetViewerRoom", []attribute.KeyValue{attribute.String("room", string(room))}, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return true, e.store.UpdateAppState(ctx, AppStateUpdate{ActiveRoomViewer: &room})
	})
	return err
}

// RunWheel clears every effect in room, then gives the lucky player DOUBLE or BOOM and the
// last-ranked player REVERSE. An empty room is a no-op and reports false.
//
// Without a transactional store a failed write returns a *BatchError; earlier writes stand.
func (e *Engine) RunWheel(ctx context.Context, room Room) (WheelOutcome, bool, error) {
	if !room.Valid() {
		return WheelOutcome{}, false, fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}

	var out WheelOutcome
	applied, err := e.withTelemetry(ctx, "RunWheel", []attribute.KeyValue{attribute.String("room", string(room))}, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		var spun bool
		err := e.inTx(ctx, func(ctx context.Context, s Store) error {
			players, err := s.ListPlayers(ctx)
			if err != nil {
				return fmt.Errorf("list players: %w", err)
			}
			ranked := RankRoom(players, room)
			out, spun = SpinWheel(ranked, e.rng)
			if !spun {
				return nil
			}

			if err := resetEffects(ctx, s, ranked); err != nil {
				return err
			}

			byID := make(map[string]Player, len(ranked))
			for _, p := range ranked {
				byID[p.ID] = p
			}
			applied := make([]string, 0, 2)
			for _, a := range out.Assignments() {
				effect := a.Effect
				total := EffectiveTotal(byID[a.PlayerID].Scores, &effect)
				if err := s.UpdatePlayer(ctx, a.PlayerID, PlayerUpdate{WheelEffect: &effect, TotalScore: &total}); err != nil {
					return &BatchError{Op: "assign effects", Applied: applied, FailedID: a.PlayerID, Err: err}
				}
				applied = append(applied, a.PlayerID)
				e.metrics.RecordWheelEffect(effect.Type)
			}
			return nil
		})
		if err != nil {
			return false, err
		}
		if spun {
			e.logger.InfoContext(ctx, "Wheel spun",
				slog.String("room", string(room)),
				slog.String("lucky_player_id", out.Lucky.PlayerID),
				slog.String("effect", out.Lucky.Effect.Desc),
			)
		}
		return spun, nil
	})
	return out, applied, err
}

// resetEffects clears the effect of every ranked player and writes their raw total.
// All resets finish before the function returns.
func resetEffects(ctx context.Context, s Store, ranked []Player) error {
	var (
		mu      sync.Mutex
		applied []string
		failed  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resetConcurrency)
	for _, p := range ranked {
		g.Go(func() error {
			total := EffectiveTotal(p.Scores, nil)
			err := s.UpdatePlayer(gctx, p.ID, PlayerUpdate{ClearWheelEffect: true, TotalScore: &total})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if failed == "" {
					failed = p.ID
				}
				return err
			}
			applied = append(applied, p.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &BatchError{Op: "reset effects", Applied: applied, FailedID: failed, Err: err}
	}
	return nil
}

// AdvanceQualifiers closes the given qualifier rooms: the top two of each room move to its
// semifinal room with scores, total and effect reset; everyone else in the room is eliminated.
// It does not change the stage and is not guarded against running twice.
func (e *Engine) AdvanceQualifiers(ctx context.Context, dayRooms []Room) (ProgressionReport, error) {
	names := make([]string, len(dayRooms))
	for i, r := range dayRooms {
		names[i] = string(r)
	}
	var report ProgressionReport
	_, err := e.withTelemetry(ctx, "AdvanceQualifiers", []attribute.KeyValue{attribute.StringSlice("rooms", names)}, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		err := e.inTx(ctx, func(ctx context.Context, s Store) error {
			players, err := s.ListPlayers(ctx)
			if err != nil {
				return fmt.Errorf("list players: %w", err)
			}
			moves, err := PlanQualifiers(players, dayRooms)
			if err != nil {
				return err
			}
			e.warnExhausted(ctx, players, dayRooms)
			report, err = e.applyMoves(ctx, s, "advance qualifiers", moves)
			return err
		})
		return err == nil, err
	})
	return report, err
}

// AdvanceSemis closes rooms A and B: the top three of each move to FINAL, the rest are
// eliminated, then the stage becomes FINALS.
func (e *Engine) AdvanceSemis(ctx context.Context) (ProgressionReport, error) {
	var report ProgressionReport
	_, err := e.withTelemetry(ctx, "AdvanceSemis", nil, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		err := e.inTx(ctx, func(ctx context.Context, s Store) error {
			players, err := s.ListPlayers(ctx)
			if err != nil {
				return fmt.Errorf("list players: %w", err)
			}
			e.warnExhausted(ctx, players, SemifinalRooms)
			report, err = e.applyMoves(ctx, s, "advance semifinals", PlanSemis(players))
			if err != nil {
				return err
			}
			finals := StageFinals
			if err := s.UpdateAppState(ctx, AppStateUpdate{Stage: &finals}); err != nil {
				return fmt.Errorf("set stage: %w", err)
			}
			return nil
		})
		return err == nil, err
	})
	return report, err
}

func (e *Engine) applyMoves(ctx context.Context, s Store, op string, moves []Move) (ProgressionReport, error) {
	var report ProgressionReport
	var applied []string
	for _, m := range moves {
		report.record(m)
		e.metrics.RecordMove(m.Kind)
		u, ok := m.Update()
		if !ok {
			continue
		}
		if err := s.UpdatePlayer(ctx, m.PlayerID, u); err != nil {
			return report, &BatchError{Op: op, Applied: applied, FailedID: m.PlayerID, Err: err}
		}
		applied = append(applied, m.PlayerID)
	}
	return report, nil
}

// warnExhausted logs rooms that only hold eliminated players, which usually means the
// progression already ran for them.
func (e *Engine) warnExhausted(ctx context.Context, players []Player, rooms []Room) {
	for _, room := range rooms {
		ranked := RankRoom(players, room)
		active := 0
		for _, p := range ranked {
			if p.Status != StatusEliminated {
				active++
			}
		}
		if len(ranked) > 0 && active == 0 {
			e.logger.WarnContext(ctx, "Room has no remaining players, progression may have run already",
				slog.String("room", string(room)),
				slog.Int("players", len(ranked)),
			)
		}
	}
}

// ListWheelModes returns the catalog.
func (e *Engine) ListWheelModes(ctx context.Context) ([]WheelMode, error) {
	return e.store.ListWheelModes(ctx)
}

// AddWheelMode adds or replaces the catalog entry keyed by the slug of name.
func (e *Engine) AddWheelMode(ctx context.Context, name, description string) (WheelMode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return WheelMode{}, ErrEmptyName
	}
	m := WheelMode{ID: slug.Make(name), Name: name, Description: strings.TrimSpace(description)}
	if m.ID == "" {
		m.ID = strconv.FormatInt(e.now().UnixNano(), 36)
	}
	_, err := e.withTelemetry(ctx, "AddWheelMode", []attribute.KeyValue{attribute.String("mode_id", m.ID)}, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return true, e.store.SaveWheelMode(ctx, m)
	})
	if err != nil {
		return WheelMode{}, err
	}
	return m, nil
}

// DeleteWheelMode removes a catalog entry. A missing entry is a no-op and reports false.
func (e *Engine) DeleteWheelMode(ctx context.Context, id string) (bool, error) {
	return e.withTelemetry(ctx, "DeleteWheelMode", []attribute.KeyValue{attribute.String("mode_id", id)}, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return skipNotFound(e.store.DeleteWheelMode(ctx, id))
	})
}

// SetRoomMode shows mode as the active gameplay variant of room.
func (e *Engine) SetRoomMode(ctx context.Context, room Room, mode string) error {
	if !room.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return ErrEmptyName
	}
	return e.writeRoomMode(ctx, "SetRoomMode", room, mode)
}

// ClearRoomMode removes the active variant of room.
func (e *Engine) ClearRoomMode(ctx context.Context, room Room) error {
	if !room.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}
	return e.writeRoomMode(ctx, "ClearRoomMode", room, "")
}

func (e *Engine) writeRoomMode(ctx context.Context, op string, room Room, mode string) error {
	attrs := []attribute.KeyValue{attribute.String("room", string(room)), attribute.String("mode", mode)}
	_, err := e.withTelemetry(ctx, op, attrs, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return true, e.store.UpdateAppState(ctx, AppStateUpdate{RoomModes: map[Room]string{room: mode}})
	})
	return err
}

// SpinRoomMode draws a mode from the catalog and makes it the active variant of room.
func (e *Engine) SpinRoomMode(ctx context.Context, room Room) (WheelMode, error) {
	if !room.Valid() {
		return WheelMode{}, fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}
	var picked WheelMode
	_, err := e.withTelemetry(ctx, "SpinRoomMode", []attribute.KeyValue{attribute.String("room", string(room))}, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		modes, err := e.store.ListWheelModes(ctx)
		if err != nil {
			return false, fmt.Errorf("list wheel modes: %w", err)
		}
		m, ok := PickMode(modes, e.rng)
		if !ok {
			return false, ErrNoWheelModes
		}
		picked = m
		return true, e.store.UpdateAppState(ctx, AppStateUpdate{RoomModes: map[Room]string{room: m.Name}})
	})
	if err != nil {
		return WheelMode{}, err
	}
	return picked, nil
}

// Reconcile rewrites every cached total that disagrees with the scores and effect it was
// derived from, and returns how many were fixed. It repairs the aftermath of a failed batch.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	fixed := 0
	_, err := e.withTelemetry(ctx, "Reconcile", nil, func(ctx context.Context) (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		fixed = 0
		err := e.inTx(ctx, func(ctx context.Context, s Store) error {
			players, err := s.ListPlayers(ctx)
			if err != nil {
				return fmt.Errorf("list players: %w", err)
			}
			var applied []string
			for _, p := range players {
				want := p.EffectiveTotal()
				if p.TotalScore == want {
					continue
				}
				if err := s.UpdatePlayer(ctx, p.ID, PlayerUpdate{TotalScore: &want}); err != nil {
					return &BatchError{Op: "reconcile totals", Applied: applied, FailedID: p.ID, Err: err}
				}
				applied = append(applied, p.ID)
				e.logger.InfoContext(ctx, "Total reconciled",
					slog.String("player_id", p.ID),
					slog.Int("cached", p.TotalScore),
					slog.Int("computed", want),
				)
			}
			fixed = len(applied)
			return nil
		})
		return err == nil, err
	})
	return fixed, err
}

// skipNotFound turns a not-found error into an unapplied no-op.
func skipNotFound(err error) (bool, error) {
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
