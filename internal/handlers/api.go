package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"xfive/internal/tournament"
)

// APIHandler exposes read-only JSON views of the tournament.
type APIHandler struct {
	engine *tournament.Engine
	logger *slog.Logger
}

func NewAPIHandler(engine *tournament.Engine, logger *slog.Logger) *APIHandler {
	return &APIHandler{engine: engine, logger: logger}
}

func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", h.snapshot)
		r.Get("/rooms/{room}", h.room)
	})
}

type snapshotResponse struct {
	Players []tournament.Player    `json:"players"`
	State   tournament.AppState    `json:"state"`
	Modes   []tournament.WheelMode `json:"modes"`
}

type standingResponse struct {
	Rank       int               `json:"rank"`
	Total      int               `json:"total"`
	Qualifying bool              `json:"qualifying"`
	Player     tournament.Player `json:"player"`
}

type roomResponse struct {
	Room      tournament.Room    `json:"room"`
	Stage     tournament.Stage   `json:"stage"`
	Mode      string             `json:"mode,omitempty"`
	Standings []standingResponse `json:"standings"`
}

func (h *APIHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Snapshot(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	resp := snapshotResponse{Players: snap.Players, State: snap.State, Modes: snap.Modes}
	if resp.Players == nil {
		resp.Players = []tournament.Player{}
	}
	if resp.Modes == nil {
		resp.Modes = []tournament.WheelMode{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) room(w http.ResponseWriter, r *http.Request) {
	room, err := tournament.ParseRoom(chi.URLParam(r, "room"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	snap, err := h.engine.Snapshot(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	resp := roomResponse{
		Room:      room,
		Stage:     snap.State.Stage,
		Mode:      snap.State.ActiveRoomModes[room],
		Standings: []standingResponse{},
	}
	for _, s := range snap.Standings(room) {
		resp.Standings = append(resp.Standings, standingResponse{
			Rank:       s.Rank,
			Total:      s.Total,
			Qualifying: s.Qualifying,
			Player:     s.Player,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
