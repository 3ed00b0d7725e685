package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"xfive/internal/auth"
	"xfive/internal/tournament"
	"xfive/views/components"
)

const keepAliveInterval = 25 * time.Second

// StreamMetrics counts open streams. *telemetry.Metrics satisfies it.
type StreamMetrics interface {
	StreamOpened()
	StreamClosed()
}

// StreamHandler pushes re-rendered leaderboards to viewers over server-sent events.
type StreamHandler struct {
	feed      *tournament.Feed
	metrics   StreamMetrics
	games     int
	keepAlive time.Duration
	logger    *slog.Logger
}

func NewStreamHandler(feed *tournament.Feed, metrics StreamMetrics, games int, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		feed:      feed,
		metrics:   metrics,
		games:     clampGames(games),
		keepAlive: keepAliveInterval,
		logger:    logger,
	}
}

// RegisterRoutes mounts the stream. It must sit outside any request timeout middleware.
func (h *StreamHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tournament/stream", h.stream)
}

// stream sends a "board" event for the requested room on every snapshot. Without a room it
// follows the admin's active viewer room.
func (h *StreamHandler) stream(w http.ResponseWriter, r *http.Request) {
	var room tournament.Room
	if raw := r.URL.Query().Get("room"); raw != "" {
		parsed, err := tournament.ParseRoom(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		room = parsed
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	viewer := auth.ViewerID(w, r)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	logger := h.logger.With(slog.String("viewer_id", viewer), slog.String("room", string(room)))
	logger.DebugContext(ctx, "Stream opened")
	h.metrics.StreamOpened()
	defer func() {
		h.metrics.StreamClosed()
		logger.DebugContext(ctx, "Stream closed")
	}()

	snaps := make(chan tournament.Snapshot)
	go func() {
		defer close(snaps)
		for snap, err := range h.feed.Snapshots(ctx) {
			if err != nil {
				logger.WarnContext(ctx, "Snapshot read failed", slog.Any("error", err))
				continue
			}
			select {
			case snaps <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			target := room
			if target == "" {
				target = snap.State.ActiveRoomViewer
			}
			writeSSE(w, "board", renderToString(r, components.Board(buildBoard(snap, target, h.games))))
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}
