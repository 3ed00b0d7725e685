package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"xfive/internal/auth"
	"xfive/internal/store"
	"xfive/internal/store/memory"
	"xfive/internal/tournament"
	"xfive/pkg/realtime"
)

type hubPublisher struct {
	hub *realtime.Hub[tournament.Change]
}

func (p hubPublisher) Publish(_ context.Context, topic string, c tournament.Change) error {
	p.hub.Publish(topic, c)
	return nil
}

type fixedRNG struct{}

func (fixedRNG) IntN(int) int { return 0 }

func (fixedRNG) Float64() float64 { return 0.1 }

type streamCounter struct{ open atomic.Int32 }

func (c *streamCounter) StreamOpened() { c.open.Add(1) }
func (c *streamCounter) StreamClosed() { c.open.Add(-1) }

type fakeArchiver struct {
	calls int
	err   error
}

func (f *fakeArchiver) Archive(context.Context, tournament.Snapshot) (string, error) {
	f.calls++
	return "standings/test.xlsx", f.err
}

type testEnv struct {
	router   chi.Router
	engine   *tournament.Engine
	sessions *auth.Sessions
	streams  *streamCounter
	archiver *fakeArchiver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := realtime.NewHub[tournament.Change]()
	t.Cleanup(hub.Close)

	st := store.WithNotifications(memory.New(), hubPublisher{hub: hub}, logger)
	engine := tournament.NewEngine(st, tournament.WithLogger(logger), tournament.WithRandomizer(fixedRNG{}))
	sessions := auth.NewSessions("admin", "secret", []byte("test-key"), time.Hour)
	env := &testEnv{
		engine:   engine,
		sessions: sessions,
		streams:  &streamCounter{},
		archiver: &fakeArchiver{},
	}

	r := chi.NewRouter()
	NewViewerHandler(engine, sessions, 5, "", logger).RegisterRoutes(r)
	NewStreamHandler(tournament.NewFeed(engine, hub.All()), env.streams, 5, logger).RegisterRoutes(r)
	NewAPIHandler(engine, logger).RegisterRoutes(r)
	NewAdminHandler(engine, sessions, auth.NewIPRateLimiter(600, 100), env.archiver, 5, logger).RegisterRoutes(r)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) adminPost(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	token, _, err := e.sessions.Issue()
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	return e.do(t, req)
}

func (e *testEnv) addPlayer(t *testing.T, name string, room tournament.Room, scores ...int) tournament.Player {
	t.Helper()
	ctx := context.Background()
	p, err := e.engine.AddPlayer(ctx, name, "", room)
	require.NoError(t, err)
	for g, s := range scores {
		_, err := e.engine.UpdateScore(ctx, p.ID, g, s)
		require.NoError(t, err)
	}
	return p
}

func TestViewer_Pages(t *testing.T) {
	env := newTestEnv(t)
	env.addPlayer(t, "Ana", tournament.Room1, 40)
	env.addPlayer(t, "Bo <script>", tournament.Room1, 90)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/tournament", rec.Header().Get("Location"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/tournament", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Room 1")
	assert.Contains(t, body, "Bo &lt;script&gt;")
	assert.NotContains(t, body, "Bo <script>")
	assert.Less(t, strings.Index(body, "Bo &lt;"), strings.Index(body, "Ana"), "ranked by total")
	assert.Contains(t, body, `data-stream="/tournament/stream"`)

	var viewer *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.ViewerCookie {
			viewer = c
		}
	}
	assert.NotNil(t, viewer, "viewer id cookie issued")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/tournament/room/a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Semifinal A")
	assert.Contains(t, rec.Body.String(), "No players in this room yet.")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/tournament/room/9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewer_Chart(t *testing.T) {
	env := newTestEnv(t)
	env.addPlayer(t, "Ana", tournament.Room2, 10)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/tournament/room/2/chart.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestAPI_FinalRoomHighlightsChampion(t *testing.T) {
	env := newTestEnv(t)
	champ := env.addPlayer(t, "Ana", tournament.RoomFinal, 50)
	env.addPlayer(t, "Bo", tournament.RoomFinal, 40)
	env.addPlayer(t, "Cy", tournament.RoomFinal, 30)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/rooms/final", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var room roomResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&room))
	require.Len(t, room.Standings, 3)
	assert.Equal(t, champ.ID, room.Standings[0].Player.ID)
	assert.True(t, room.Standings[0].Qualifying)
	assert.False(t, room.Standings[1].Qualifying)
	assert.False(t, room.Standings[2].Qualifying)
}

func TestAPI(t *testing.T) {
	env := newTestEnv(t)
	low := env.addPlayer(t, "Ana", tournament.Room1, 10)
	high := env.addPlayer(t, "Bo", tournament.Room1, 30)
	env.addPlayer(t, "Cy", tournament.Room1, 20)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/rooms/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var room roomResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&room))
	require.Len(t, room.Standings, 3)
	assert.Equal(t, high.ID, room.Standings[0].Player.ID)
	assert.Equal(t, low.ID, room.Standings[2].Player.ID)
	assert.True(t, room.Standings[1].Qualifying)
	assert.False(t, room.Standings[2].Qualifying)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/rooms/Z", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap snapshotResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Len(t, snap.Players, 3)
	assert.Equal(t, tournament.StageQualifiersDay1, snap.State.Stage)
	assert.NotNil(t, snap.Modes)
}

func TestAdmin_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodPost, "/admin/stage", strings.NewReader("stage=FINALS"))
	req.Header.Set("Accept", "application/json")
	rec = env.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	snap, err := env.engine.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tournament.StageQualifiersDay1, snap.State.Stage, "rejected request changed nothing")
}

func TestAdmin_Login(t *testing.T) {
	env := newTestEnv(t)
	post := func(user, pass string) *httptest.ResponseRecorder {
		form := url.Values{"user": {user}, "pass": {pass}}
		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return env.do(t, req)
	}

	rec := post("admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong user or password.")

	rec = post("admin", "secret")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "QUALIFIERS D1")
}

func TestAdmin_LoginRateLimited(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := tournament.NewEngine(memory.New(), tournament.WithLogger(logger))
	r := chi.NewRouter()
	NewAdminHandler(engine, auth.NewSessions("admin", "secret", []byte("k"), time.Hour), auth.NewIPRateLimiter(1, 1), nil, 5, logger).RegisterRoutes(r)

	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader("user=x&pass=y"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestAdmin_ClearedScoreCellStoresZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.addPlayer(t, "Ana", tournament.Room2, 30, 40)

	rec := env.adminPost(t, "/admin/players/"+p.ID+"/scores", url.Values{"game": {"1"}, "score": {""}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	players, err := env.engine.PlayersInRoom(ctx, tournament.Room2)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, []int{30, 0}, players[0].Scores)
	assert.Equal(t, 30, players[0].TotalScore)
}

func TestAdmin_PlayerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.adminPost(t, "/admin/players", url.Values{"name": {"Ana"}, "nick": {"ace"}, "room": {"3"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "msg=")

	players, err := env.engine.PlayersInRoom(ctx, tournament.Room3)
	require.NoError(t, err)
	require.Len(t, players, 1)
	id := players[0].ID

	rec = env.adminPost(t, "/admin/players/"+id+"/scores", url.Values{"game": {"1"}, "score": {"25"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	players, err = env.engine.PlayersInRoom(ctx, tournament.Room3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 25}, players[0].Scores)
	assert.Equal(t, 25, players[0].TotalScore)

	rec = env.adminPost(t, "/admin/players/"+id+"/scores", url.Values{"game": {"0"}, "score": {"-4"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.adminPost(t, "/admin/players/"+id+"/scores", url.Values{"game": {"99"}, "score": {"4"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.adminPost(t, "/admin/players/"+id, url.Values{"name": {"Ana Lee"}, "nick": {""}, "room": {"4"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	players, err = env.engine.PlayersInRoom(ctx, tournament.Room4)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Ana Lee", players[0].Name)
	assert.Empty(t, players[0].Nick)

	rec = env.adminPost(t, "/admin/players", url.Values{"name": {"X"}, "room": {"7"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.adminPost(t, "/admin/players/"+id+"/delete", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = env.adminPost(t, "/admin/players/"+id+"/delete", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), url.QueryEscape("Nothing changed: not found"))
}

func TestAdmin_StageAndProgression(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.addPlayer(t, "Ana", tournament.Room1, 50)
	second := env.addPlayer(t, "Bo", tournament.Room2, 40)
	out := env.addPlayer(t, "Cy", tournament.Room1, 10)
	third := env.addPlayer(t, "Di", tournament.Room1, 30)

	rec := env.adminPost(t, "/admin/advance/day1", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	semis, err := env.engine.PlayersInRoom(ctx, tournament.RoomA)
	require.NoError(t, err)
	ids := []string{}
	for _, p := range semis {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{first.ID, third.ID, second.ID}, ids, "top two of room 1 and the only player of room 2")

	room1, err := env.engine.PlayersInRoom(ctx, tournament.Room1)
	require.NoError(t, err)
	require.Len(t, room1, 1)
	assert.Equal(t, out.ID, room1[0].ID)
	assert.Equal(t, tournament.StatusEliminated, room1[0].Status)

	rec = env.adminPost(t, "/admin/advance/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.adminPost(t, "/admin/stage", url.Values{"stage": {"semifinals"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = env.adminPost(t, "/admin/stage", url.Values{"stage": {"bogus"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.adminPost(t, "/admin/viewer-room", url.Values{"room": {"A"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	snap, err := env.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, tournament.StageSemifinals, snap.State.Stage)
	assert.Equal(t, tournament.RoomA, snap.State.ActiveRoomViewer)
}

func TestAdmin_WheelAndModes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addPlayer(t, "Ana", tournament.Room5, 50)
	env.addPlayer(t, "Bo", tournament.Room5, 10)

	rec := env.adminPost(t, "/admin/rooms/5/wheel", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	players, err := env.engine.PlayersInRoom(ctx, tournament.Room5)
	require.NoError(t, err)
	effects := 0
	for _, p := range players {
		if p.WheelEffect != nil {
			effects++
		}
	}
	assert.Equal(t, 2, effects)

	rec = env.adminPost(t, "/admin/rooms/6/wheel", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "no+players")

	rec = env.adminPost(t, "/admin/rooms/A/mode/spin", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty catalog")

	rec = env.adminPost(t, "/admin/modes", url.Values{"name": {"Sudden Death"}, "description": {"one life"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = env.adminPost(t, "/admin/rooms/A/mode/spin", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	snap, err := env.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sudden Death", snap.State.ActiveRoomModes[tournament.RoomA])

	rec = env.adminPost(t, "/admin/rooms/A/mode", url.Values{"clear": {"1"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = env.adminPost(t, "/admin/modes/sudden-death/delete", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	snap, err = env.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.State.ActiveRoomModes)
	assert.Empty(t, snap.Modes)
}

func TestAdmin_RosterImportAndExport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"name", "nick", "room"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Ana", "ace", "1"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"Bo", "", "4"}))
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("roster", "roster.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	token, _, err := env.sessions.Issue()
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/admin/roster", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	rec := env.do(t, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	snap, err := env.engine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 2)

	req = httptest.NewRequest(http.MethodGet, "/admin/export/standings.xlsx", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	rec = env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	book, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"Room 1", "Room 4"}, book.GetSheetList())

	rec = env.adminPost(t, "/admin/archive", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, env.archiver.calls)

	env.archiver.err = errors.New("bucket gone")
	rec = env.adminPost(t, "/admin/archive", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStream_PushesBoards(t *testing.T) {
	env := newTestEnv(t)
	env.addPlayer(t, "Ana", tournament.Room2, 10)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/tournament/stream?room=2", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := bufio.NewReader(resp.Body)
	first := readEvent(t, events)
	assert.Equal(t, "board", first.name)
	assert.Contains(t, first.data, "Ana")
	assert.Equal(t, int32(1), env.streams.open.Load())

	env.addPlayer(t, "Bo", tournament.Room2)
	var next sseEvent
	for !strings.Contains(next.data, "Bo") {
		next = readEvent(t, events)
	}
	assert.Equal(t, "board", next.name)

	cancel()
	assert.Eventually(t, func() bool { return env.streams.open.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStream_RejectsUnknownRoom(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/tournament/stream?room=Q", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	var data []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && ev.name != "":
			ev.data = strings.Join(data, "\n")
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
}
