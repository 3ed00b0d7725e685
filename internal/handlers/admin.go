package handlers

import (
	"context"
	"fmt"
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

const (
	loginPath     = "/admin/login"
	dashboardPath = "/admin"
	maxRosterSize = 4 << 20
)

// Archiver uploads a standings workbook. *export.Archiver satisfies it.
type Archiver interface {
	Archive(ctx context.Context, snap tournament.Snapshot) (string, error)
}

// AdminHandler serves the login flow and the admin dashboard with its actions.
type AdminHandler struct {
	engine   *tournament.Engine
	sessions *auth.Sessions
	limiter  *auth.IPRateLimiter
	archiver Archiver
	games    int
	logger   *slog.Logger
}

// NewAdminHandler creates the admin handler. archiver may be nil when archiving is disabled.
func NewAdminHandler(engine *tournament.Engine, sessions *auth.Sessions, limiter *auth.IPRateLimiter, archiver Archiver, games int, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		engine:   engine,
		sessions: sessions,
		limiter:  limiter,
		archiver: archiver,
		games:    clampGames(games),
		logger:   logger,
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get(loginPath, h.loginPage)
	r.With(h.limiter.Middleware).Post(loginPath, h.login)
	r.Post("/admin/logout", h.logout)

	r.Route(dashboardPath, func(r chi.Router) {
		r.Use(h.sessions.RequireAdmin(loginPath))
		r.Get("/", h.dashboard)

		r.Post("/stage", h.setStage)
		r.Post("/viewer-room", h.setViewerRoom)
		r.Post("/advance/{step}", h.advance)
		r.Post("/reconcile", h.reconcile)

		r.Post("/players", h.addPlayer)
		r.Post("/players/{id}", h.editPlayer)
		r.Post("/players/{id}/delete", h.deletePlayer)
		r.Post("/players/{id}/scores", h.updateScore)

		r.Post("/rooms/{room}/wheel", h.spinWheel)
		r.Post("/rooms/{room}/mode", h.setRoomMode)
		r.Post("/rooms/{room}/mode/spin", h.spinRoomMode)

		r.Post("/modes", h.addMode)
		r.Post("/modes/{id}/delete", h.deleteMode)

		r.Post("/roster", h.importRoster)
		r.Get("/export/standings.xlsx", h.exportStandings)
		r.Post("/archive", h.archive)
	})
}

func (h *AdminHandler) loginPage(w http.ResponseWriter, r *http.Request) {
	if h.sessions.IsAdmin(r) {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	render(w, r, pages.LoginPage(viewmodel.LoginPage{Title: "xfive admin"}))
}

func (h *AdminHandler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := h.sessions.CheckCredentials(r.FormValue("user"), r.FormValue("pass")); err != nil {
		h.logger.WarnContext(r.Context(), "Admin login rejected", slog.String("remote_addr", r.RemoteAddr))
		w.WriteHeader(http.StatusUnauthorized)
		render(w, r, pages.LoginPage(viewmodel.LoginPage{Title: "xfive admin", Error: "Wrong user or password."}))
		return
	}
	token, expires, err := h.sessions.Issue()
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.sessions.SetCookie(w, r, token, expires)
	h.logger.InfoContext(r.Context(), "Admin logged in")
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (h *AdminHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Snapshot(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	data := buildDashboard(snap, h.games)
	data.Flash = r.URL.Query().Get("msg")
	data.Admin, _ = auth.AdminFrom(r.Context())
	data.ArchiveEnabled = h.archiver != nil
	render(w, r, pages.DashboardPage(data))
}

// done sends the browser back to the dashboard with a flash message.
func done(w http.ResponseWriter, r *http.Request, msg string) {
	target := dashboardPath
	if msg != "" {
		target += "?msg=" + url.QueryEscape(msg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *AdminHandler) setStage(w http.ResponseWriter, r *http.Request) {
	stage, err := tournament.ParseStage(r.FormValue("stage"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.engine.SetStage(r.Context(), stage); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, "Stage set to "+stage.Label())
}

func (h *AdminHandler) setViewerRoom(w http.ResponseWriter, r *http.Request) {
	room, err := tournament.ParseRoom(r.FormValue("room"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := h.engine.SetViewerRoom(r.Context(), room); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, "Viewers now see "+roomTitle(room))
}

func (h *AdminHandler) advance(w http.ResponseWriter, r *http.Request) {
	var (
		report tournament.ProgressionReport
		err    error
	)
	switch chi.URLParam(r, "step") {
	case "day1":
		report, err = h.engine.AdvanceQualifiers(r.Context(), tournament.Day1Rooms)
	case "day2":
		report, err = h.engine.AdvanceQualifiers(r.Context(), tournament.Day2Rooms)
	case "semis":
		report, err = h.engine.AdvanceSemis(r.Context())
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, fmt.Sprintf("%d promoted, %d eliminated, %d skipped",
		len(report.Promoted), len(report.Eliminated), len(report.Skipped)))
}

func (h *AdminHandler) reconcile(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.engine.Reconcile(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, fmt.Sprintf("%d total(s) reconciled", fixed))
}

func (h *AdminHandler) addPlayer(w http.ResponseWriter, r *http.Request) {
	room, err := tournament.ParseRoom(r.FormValue("room"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	p, err := h.engine.AddPlayer(r.Context(), r.FormValue("name"), r.FormValue("nick"), room)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, p.DisplayName()+" added to "+roomTitle(room))
}

func (h *AdminHandler) editPlayer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	var edit tournament.PlayerEdit
	if r.PostForm.Has("name") {
		name := r.PostForm.Get("name")
		edit.Name = &name
	}
	if r.PostForm.Has("nick") {
		nick := strings.TrimSpace(r.PostForm.Get("nick"))
		edit.Nick = &nick
	}
	if raw := r.PostForm.Get("room"); raw != "" {
		room, err := tournament.ParseRoom(raw)
		if err != nil {
			fail(w, r, h.logger, err)
			return
		}
		edit.Room = &room
	}
	applied, err := h.engine.UpdatePlayer(r.Context(), chi.URLParam(r, "id"), edit)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, appliedMsg(applied, "Player updated"))
}

func (h *AdminHandler) deletePlayer(w http.ResponseWriter, r *http.Request) {
	applied, err := h.engine.DeletePlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, appliedMsg(applied, "Player deleted"))
}

func (h *AdminHandler) updateScore(w http.ResponseWriter, r *http.Request) {
	game := parseInt(r.FormValue("game"), -1)
	// A cleared cell stores zero.
	score := parseInt(r.FormValue("score"), 0)
	applied, err := h.engine.UpdateScore(r.Context(), chi.URLParam(r, "id"), game, score)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if r.Header.Get("X-Requested-With") == "fetch" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	done(w, r, appliedMsg(applied, "Score saved"))
}

func (h *AdminHandler) spinWheel(w http.ResponseWriter, r *http.Request) {
	room, err := tournament.ParseRoom(chi.URLParam(r, "room"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	out, spun, err := h.engine.RunWheel(r.Context(), room)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if !spun {
		done(w, r, roomTitle(room)+" has no players to spin")
		return
	}
	msg := "Wheel: " + out.Lucky.Effect.Desc
	if out.CatchUp != nil {
		msg += ", REVERSE for last place"
	}
	done(w, r, msg)
}

func (h *AdminHandler) setRoomMode(w http.ResponseWriter, r *http.Request) {
	room, err := tournament.ParseRoom(chi.URLParam(r, "room"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if r.FormValue("clear") != "" {
		err = h.engine.ClearRoomMode(r.Context(), room)
	} else {
		err = h.engine.SetRoomMode(r.Context(), room, r.FormValue("mode"))
	}
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, roomTitle(room)+" mode updated")
}

func (h *AdminHandler) spinRoomMode(w http.ResponseWriter, r *http.Request) {
	room, err := tournament.ParseRoom(chi.URLParam(r, "room"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	mode, err := h.engine.SpinRoomMode(r.Context(), room)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, roomTitle(room)+" plays "+mode.Name)
}

func (h *AdminHandler) addMode(w http.ResponseWriter, r *http.Request) {
	mode, err := h.engine.AddWheelMode(r.Context(), r.FormValue("name"), r.FormValue("description"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, "Mode "+mode.Name+" saved")
}

func (h *AdminHandler) deleteMode(w http.ResponseWriter, r *http.Request) {
	applied, err := h.engine.DeleteWheelMode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	done(w, r, appliedMsg(applied, "Mode removed"))
}

// importRoster adds every row of an uploaded XLSX roster. Rows are validated before any are added.
func (h *AdminHandler) importRoster(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRosterSize)
	file, _, err := r.FormFile("roster")
	if err != nil {
		http.Error(w, "roster file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	entries, err := export.ParseRoster(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	added := 0
	for _, e := range entries {
		if _, err := h.engine.AddPlayer(r.Context(), e.Name, e.Nick, e.Room); err != nil {
			fail(w, r, h.logger, fmt.Errorf("roster row %d after %d added: %w", e.Row, added, err))
			return
		}
		added++
	}
	done(w, r, fmt.Sprintf("%d player(s) imported", added))
}

func (h *AdminHandler) exportStandings(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Snapshot(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="standings.xlsx"`)
	if err := export.WriteStandings(w, snap, h.games); err != nil {
		h.logger.ErrorContext(r.Context(), "Standings export failed", slog.Any("error", err))
	}
}

func (h *AdminHandler) archive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		http.Error(w, "archiving is not configured", http.StatusNotFound)
		return
	}
	snap, err := h.engine.Snapshot(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	key, err := h.archiver.Archive(r.Context(), snap)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "Standings archived", slog.String("key", key))
	done(w, r, "Archived as "+key)
}

func appliedMsg(applied bool, msg string) string {
	if !applied {
		return "Nothing changed: not found"
	}
	return msg
}

var _ Archiver = (*export.Archiver)(nil)
