package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"xfive/internal/auth"
	"xfive/internal/export"
	"xfive/internal/tournament"
	"xfive/internal/viewmodel"
	"xfive/views/pages"
)

// ViewerHandler serves the public leaderboard pages.
type ViewerHandler struct {
	engine   *tournament.Engine
	sessions *auth.Sessions
	games    int
	baseURL  string
	logger   *slog.Logger
}

func NewViewerHandler(engine *tournament.Engine, sessions *auth.Sessions, games int, baseURL string, logger *slog.Logger) *ViewerHandler {
	return &ViewerHandler{
		engine:   engine,
		sessions: sessions,
		games:    clampGames(games),
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		logger:   logger,
	}
}

func (h *ViewerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/tournament", http.StatusSeeOther)
	})
	r.Get("/tournament", h.livePage)
	r.Get("/tournament/room/{room}", h.roomPage)
	r.Get("/tournament/room/{room}/chart.png", h.chart)
}

// livePage follows the room the admin put on screen.
func (h *ViewerHandler) livePage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "", true)
}

func (h *ViewerHandler) roomPage(w http.ResponseWriter, r *http.Request) {
	room, err := tournament.ParseRoom(chi.URLParam(r, "room"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.page(w, r, room, false)
}

func (h *ViewerHandler) page(w http.ResponseWriter, r *http.Request, room tournament.Room, follow bool) {
	auth.ViewerID(w, r)
	snap, err := h.engine.Snapshot(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if follow {
		room = snap.State.ActiveRoomViewer
	}

	streamURL := "/tournament/stream"
	path := "/tournament"
	if !follow {
		streamURL += "?room=" + url.QueryEscape(string(room))
		path += "/room/" + string(room)
	}
	data := viewmodel.ViewerPage{
		Title:     "xfive",
		Room:      string(room),
		Follow:    follow,
		Rooms:     roomLinks(room, follow),
		Board:     buildBoard(snap, room, h.games),
		StreamURL: streamURL,
		ChartURL:  path + "/chart.png",
		ShareURL:  buildShareURL(r, h.baseURL, path),
		IsAdmin:   h.sessions != nil && h.sessions.IsAdmin(r),
	}
	render(w, r, pages.TournamentPage(data))
}

func (h *ViewerHandler) chart(w http.ResponseWriter, r *http.Request) {
	room, err := tournament.ParseRoom(chi.URLParam(r, "room"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	snap, err := h.engine.Snapshot(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	png, err := export.RoomChart(snap, room)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func buildShareURL(r *http.Request, baseURL, path string) string {
	if baseURL != "" {
		return baseURL + path
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path
}

func clampGames(games int) int {
	return min(max(games, 1), tournament.MaxGames)
}
