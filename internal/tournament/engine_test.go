package tournament

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

var fixedNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func newTestEngine(store Store, rng Randomizer, metrics Metrics) *Engine {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if rng == nil {
		rng = &scriptedRNG{}
	}
	return NewEngine(store,
		WithRandomizer(rng),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics),
		WithTracer(noop.NewTracerProvider().Tracer("test")),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func scored(id string, room Room, scores ...int) Player {
	return Player{
		ID:         id,
		Name:       id,
		Room:       room,
		Scores:     scores,
		TotalScore: EffectiveTotal(scores, nil),
		Status:     StatusActive,
	}
}

func TestEngine_AddPlayer(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore()
	e := newTestEngine(store, nil, nil)

	p, err := e.AddPlayer(ctx, "  Ada Lovelace ", "ada", Room3)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Equal(t, StatusActive, p.Status)
	assert.Equal(t, []int{}, p.Scores)
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.Equal(t, p, store.player(p.ID))

	_, err = e.AddPlayer(ctx, "  ", "", Room1)
	assert.ErrorIs(t, err, ErrEmptyName)
	_, err = e.AddPlayer(ctx, "Bob", "", Room("7"))
	assert.ErrorIs(t, err, ErrInvalidRoom)
}

func TestEngine_AddPlayer_GeneratedRoster(t *testing.T) {
	ctx := context.Background()
	faker := gofakeit.New(7)
	store := NewFakeStore()
	e := newTestEngine(store, nil, nil)

	seen := map[string]bool{}
	for i := 0; i < 30; i++ {
		room := Day1Rooms[i%len(Day1Rooms)]
		p, err := e.AddPlayer(ctx, faker.Name(), faker.Username(), room)
		require.NoError(t, err)
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
	players, err := store.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Len(t, players, 30)
	assert.Len(t, RankRoom(players, Room2), 10)
}

func TestEngine_UpdateScore(t *testing.T) {
	ctx := context.Background()
	p := scored("p", Room1, 10)
	p.WheelEffect = &DoubleChance
	p.TotalScore = 20
	store := NewFakeStore(p)
	metrics := newFakeMetrics()
	e := newTestEngine(store, nil, metrics)

	applied, err := e.UpdateScore(ctx, "p", 2, 25)
	require.NoError(t, err)
	assert.True(t, applied)

	got := store.player("p")
	assert.Equal(t, []int{10, 0, 25}, got.Scores)
	assert.Equal(t, 60, got.TotalScore)
	assert.Equal(t, got.EffectiveTotal(), got.TotalScore)

	applied, err = e.UpdateScore(ctx, "ghost", 0, 5)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, []string{"success", "skipped"}, metrics.ops["UpdateScore"])

	_, err = e.UpdateScore(ctx, "p", 0, -1)
	assert.ErrorIs(t, err, ErrInvalidScore)
	_, err = e.UpdateScore(ctx, "p", MaxGames, 1)
	assert.ErrorIs(t, err, ErrInvalidGame)
	_, err = e.UpdateScore(ctx, "p", -1, 1)
	assert.ErrorIs(t, err, ErrInvalidGame)
}

func TestEngine_UpdateAndDeletePlayer(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore(scored("p", Room1, 1))
	e := newTestEngine(store, nil, nil)

	name, room := "Renamed", Room4
	applied, err := e.UpdatePlayer(ctx, "p", PlayerEdit{Name: &name, Room: &room})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "Renamed", store.player("p").Name)
	assert.Equal(t, Room4, store.player("p").Room)

	applied, err = e.UpdatePlayer(ctx, "ghost", PlayerEdit{Name: &name})
	require.NoError(t, err)
	assert.False(t, applied)

	blank := " "
	_, err = e.UpdatePlayer(ctx, "p", PlayerEdit{Name: &blank})
	assert.ErrorIs(t, err, ErrEmptyName)

	applied, err = e.DeletePlayer(ctx, "p")
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = e.DeletePlayer(ctx, "p")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestEngine_SetStageAndViewerRoom(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore()
	e := newTestEngine(store, nil, nil)

	require.NoError(t, e.SetStage(ctx, StageSemifinals))
	require.NoError(t, e.SetStage(ctx, StageQualifiersDay1), "stages may go backwards")
	require.NoError(t, e.SetViewerRoom(ctx, RoomB))
	assert.ErrorIs(t, e.SetStage(ctx, Stage("PLAYOFFS")), ErrInvalidStage)
	assert.ErrorIs(t, e.SetViewerRoom(ctx, Room("Z")), ErrInvalidRoom)

	state, err := store.GetAppState(ctx)
	require.NoError(t, err)
	assert.Equal(t, StageQualifiersDay1, state.Stage)
	assert.Equal(t, RoomB, state.ActiveRoomViewer)
}

func TestEngine_RunWheel(t *testing.T) {
	ctx := context.Background()
	first := scored("first", Room1, 30)
	first.WheelEffect = &BoomUp
	first.TotalScore = 34
	store := NewFakeStore(first, scored("second", Room1, 20), scored("last", Room1, 10), scored("elsewhere", Room2, 99))
	metrics := newFakeMetrics()
	e := newTestEngine(store, &scriptedRNG{ints: []int{0, 1}}, metrics)

	out, applied, err := e.RunWheel(ctx, Room1)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, "second", out.Lucky.PlayerID)

	assert.Nil(t, store.player("first").WheelEffect)
	assert.Equal(t, 30, store.player("first").TotalScore)
	assert.Equal(t, DoubleChance, *store.player("second").WheelEffect)
	assert.Equal(t, 40, store.player("second").TotalScore)
	assert.Equal(t, ReverseBonus, *store.player("last").WheelEffect)
	assert.Equal(t, 10, store.player("last").TotalScore)
	assert.Nil(t, store.player("elsewhere").WheelEffect)

	trace := store.Trace()
	require.Len(t, trace, 5)
	assert.ElementsMatch(t, []string{"UpdatePlayer:first", "UpdatePlayer:second", "UpdatePlayer:last"}, trace[:3])
	assert.Equal(t, []string{"UpdatePlayer:second", "UpdatePlayer:last"}, trace[3:])
	assert.Equal(t, []EffectType{EffectDouble, EffectReverse}, metrics.effects)

	lucky := 0
	players, _ := store.ListPlayers(ctx)
	for _, p := range RankRoom(players, Room1) {
		if p.WheelEffect != nil && (p.WheelEffect.Type == EffectDouble || p.WheelEffect.Type == EffectBoom) {
			lucky++
		}
	}
	assert.Equal(t, 1, lucky)
}

func TestEngine_RunWheel_EmptyRoom(t *testing.T) {
	store := NewFakeStore(scored("p", Room1, 1))
	e := newTestEngine(store, &scriptedRNG{}, nil)

	_, applied, err := e.RunWheel(context.Background(), Room5)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, store.Trace())
}

func TestEngine_RunWheel_ResetFailureStopsBeforeAssignments(t *testing.T) {
	boom := errors.New("connection reset")
	store := NewFakeStore(scored("a", Room1, 3), scored("b", Room1, 2), scored("c", Room1, 1))
	store.UpdatePlayerFunc = func(_ context.Context, id string, u PlayerUpdate) error {
		if id == "b" && u.ClearWheelEffect {
			return boom
		}
		return nil
	}
	e := newTestEngine(store, &scriptedRNG{ints: []int{0, 0}}, nil)

	_, applied, err := e.RunWheel(context.Background(), Room1)
	require.Error(t, err)
	assert.False(t, applied)
	assert.ErrorIs(t, err, boom)

	var batch *BatchError
	require.ErrorAs(t, err, &batch)
	assert.Equal(t, "b", batch.FailedID)
	assert.NotContains(t, batch.Applied, "b")
	for _, p := range []string{"a", "b", "c"} {
		assert.Nil(t, store.player(p).WheelEffect, "no assignment may follow a failed reset")
	}
}

func TestEngine_RunWheel_TransactionRollsBack(t *testing.T) {
	boom := errors.New("write failed")
	a := scored("a", Room1, 3)
	a.WheelEffect = &BoomDown
	a.TotalScore = 2
	fake := NewFakeStore(a, scored("b", Room1, 2))
	fake.UpdatePlayerFunc = func(_ context.Context, id string, u PlayerUpdate) error {
		if u.WheelEffect != nil && u.WheelEffect.Type == EffectReverse {
			return boom
		}
		return nil
	}
	store := &FakeTxStore{FakeStore: fake}
	e := newTestEngine(store, &scriptedRNG{ints: []int{0, 0}}, nil)

	_, _, err := e.RunWheel(context.Background(), Room1)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.txCalls)
	require.NotNil(t, fake.player("a").WheelEffect)
	assert.Equal(t, BoomDown, *fake.player("a").WheelEffect)
	assert.Equal(t, 2, fake.player("a").TotalScore)
}

func TestEngine_AdvanceQualifiers(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore(
		scored("P3", Room1, 30),
		scored("P1", Room1, 50),
		scored("P4", Room1, 10),
		scored("P2", Room1, 40),
		scored("R1", Room2, 5),
	)
	metrics := newFakeMetrics()
	e := newTestEngine(store, nil, metrics)

	report, err := e.AdvanceQualifiers(ctx, []Room{Room1})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, report.Promoted)
	assert.Equal(t, []string{"P3", "P4"}, report.Eliminated)

	for _, id := range []string{"P1", "P2"} {
		p := store.player(id)
		assert.Equal(t, StatusQualified, p.Status)
		assert.Equal(t, RoomA, p.Room)
		assert.Empty(t, p.Scores)
		assert.Zero(t, p.TotalScore)
	}
	assert.Equal(t, StatusEliminated, store.player("P3").Status)
	assert.Equal(t, []int{30}, store.player("P3").Scores)
	assert.Equal(t, Room1, store.player("P4").Room)
	assert.Equal(t, StatusActive, store.player("R1").Status, "rooms not listed are untouched")
	assert.Equal(t, 2, metrics.moves[MovePromote])

	state, _ := store.GetAppState(ctx)
	assert.Equal(t, StageQualifiersDay1, state.Stage)

	t.Run("second run never re-promotes eliminated players", func(t *testing.T) {
		report, err := e.AdvanceQualifiers(ctx, []Room{Room1})
		require.NoError(t, err)
		assert.Empty(t, report.Promoted)
		assert.Equal(t, []string{"P3", "P4"}, report.Skipped)
		assert.Equal(t, RoomA, store.player("P1").Room)
		assert.Equal(t, StatusEliminated, store.player("P3").Status)
		assert.Equal(t, Room1, store.player("P3").Room)
	})

	_, err = e.AdvanceQualifiers(ctx, []Room{RoomFinal})
	assert.ErrorIs(t, err, ErrInvalidRoom)
}

func TestEngine_AdvanceQualifiers_PartialFailure(t *testing.T) {
	boom := errors.New("timeout")
	store := NewFakeStore(scored("a", Room4, 3), scored("b", Room4, 2), scored("c", Room4, 1))
	store.UpdatePlayerFunc = func(_ context.Context, id string, _ PlayerUpdate) error {
		if id == "c" {
			return boom
		}
		return nil
	}
	e := newTestEngine(store, nil, nil)

	_, err := e.AdvanceQualifiers(context.Background(), Day2Rooms)
	var batch *BatchError
	require.ErrorAs(t, err, &batch)
	assert.Equal(t, []string{"a", "b"}, batch.Applied)
	assert.Equal(t, "c", batch.FailedID)
	assert.Equal(t, RoomB, store.player("a").Room)
	assert.Equal(t, StatusActive, store.player("c").Status)
}

func TestEngine_AdvanceSemis(t *testing.T) {
	ctx := context.Background()
	var players []Player
	for _, room := range SemifinalRooms {
		for i := 0; i < 5; i++ {
			players = append(players, scored(string(room)+"-"+string(rune('a'+i)), room, 50-i*5))
		}
	}
	store := NewFakeStore(players...)
	e := newTestEngine(store, nil, nil)

	report, err := e.AdvanceSemis(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Promoted, 6)
	assert.Len(t, report.Eliminated, 4)

	for _, room := range SemifinalRooms {
		for i := 0; i < 5; i++ {
			p := store.player(string(room) + "-" + string(rune('a'+i)))
			if i < 3 {
				assert.Equal(t, RoomFinal, p.Room)
				assert.Equal(t, StatusQualified, p.Status)
			} else {
				assert.Equal(t, room, p.Room)
				assert.Equal(t, StatusEliminated, p.Status)
			}
		}
	}
	state, err := store.GetAppState(ctx)
	require.NoError(t, err)
	assert.Equal(t, StageFinals, state.Stage)
}

func TestEngine_WheelModes(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore()
	e := newTestEngine(store, &scriptedRNG{ints: []int{1}}, nil)

	_, err := e.SpinRoomMode(ctx, RoomA)
	assert.ErrorIs(t, err, ErrNoWheelModes)

	m, err := e.AddWheelMode(ctx, "Blind Round", "no preview")
	require.NoError(t, err)
	assert.Equal(t, "blind-round", m.ID)
	_, err = e.AddWheelMode(ctx, "Speed Run", "")
	require.NoError(t, err)

	picked, err := e.SpinRoomMode(ctx, RoomA)
	require.NoError(t, err)
	assert.Equal(t, "Speed Run", picked.Name)

	require.NoError(t, e.SetRoomMode(ctx, RoomB, "Blind Round"))
	state, _ := store.GetAppState(ctx)
	assert.Equal(t, map[Room]string{RoomA: "Speed Run", RoomB: "Blind Round"}, state.ActiveRoomModes)

	require.NoError(t, e.ClearRoomMode(ctx, RoomA))
	state, _ = store.GetAppState(ctx)
	assert.Equal(t, map[Room]string{RoomB: "Blind Round"}, state.ActiveRoomModes)

	applied, err := e.DeleteWheelMode(ctx, "blind-round")
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = e.DeleteWheelMode(ctx, "blind-round")
	require.NoError(t, err)
	assert.False(t, applied)

	modes, err := e.ListWheelModes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"speed-run"}, []string{modes[0].ID})
}

func TestEngine_Reconcile(t *testing.T) {
	ctx := context.Background()
	stale := scored("stale", Room1, 10, 20)
	stale.WheelEffect = &DoubleChance
	fresh := scored("fresh", Room1, 5)
	store := NewFakeStore(stale, fresh)
	e := newTestEngine(store, nil, nil)

	fixed, err := e.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Equal(t, 50, store.player("stale").TotalScore)

	fixed, err = e.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestEngine_RecoversFromPanic(t *testing.T) {
	store := NewFakeStore()
	store.ListPlayersFunc = func(context.Context) ([]Player, error) {
		panic("driver bug")
	}
	metrics := newFakeMetrics()
	e := newTestEngine(store, nil, metrics)

	_, err := e.Reconcile(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in Reconcile")
	assert.Equal(t, []string{"failure"}, metrics.ops["Reconcile"])
}

func TestEngine_StandingsAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewFakeStore(scored("a", RoomA, 1), scored("b", RoomA, 9))
	e := newTestEngine(store, nil, nil)

	rows, err := e.Standings(ctx, RoomA)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].Player.ID)
	assert.True(t, rows[1].Qualifying)

	_, err = e.PlayersInRoom(ctx, Room("9"))
	assert.ErrorIs(t, err, ErrInvalidRoom)

	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 2)
	assert.Equal(t, DefaultAppState(), snap.State)
}
