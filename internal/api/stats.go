package api

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/LucasionGS/ionmc-v2/internal/stats"
)

type StatsHandler struct {
	db        *sql.DB
	collector *stats.Collector
}

func NewStatsHandler(db *sql.DB, collector *stats.Collector) *StatsHandler {
	return &StatsHandler{db: db, collector: collector}
}

// Latest returns the most recent player-count sample for a server.
func (h *StatsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "id")

	if s := h.collector.Latest(serverID); s != nil {
		writeJSON(w, http.StatusOK, s)
		return
	}

	var s stats.Sample
	err := h.db.QueryRow(
		`SELECT id, server_id, count, recorded_at FROM player_counts
		WHERE server_id = ? ORDER BY recorded_at DESC LIMIT 1`, serverID,
	).Scan(&s.ID, &s.ServerID, &s.Count, &s.RecordedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "no samples available")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to query samples")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// History returns samples for a period like 1h, 6h, or 24h.
func (h *StatsHandler) History(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "id")
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1h"
	}
	duration, err := time.ParseDuration(period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period: use format like 1h, 6h, 24h")
		return
	}

	since := time.Now().Add(-duration).UTC().Format("2006-01-02 15:04:05")
	rows, err := h.db.Query(
		`SELECT id, server_id, count, recorded_at FROM player_counts
		WHERE server_id = ? AND recorded_at >= ? ORDER BY recorded_at ASC`, serverID, since,
	)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query samples")
		return
	}
	defer rows.Close()

	result := []stats.Sample{}
	for rows.Next() {
		var s stats.Sample
		if err := rows.Scan(&s.ID, &s.ServerID, &s.Count, &s.RecordedAt); err != nil {
			continue
		}
		result = append(result, s)
	}
	writeJSON(w, http.StatusOK, result)
}

// Live streams new samples over a WebSocket.
func (h *StatsHandler) Live(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("stats websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := h.collector.Subscribe(serverID)
	defer h.collector.Unsubscribe(serverID, ch)

	if latest := h.collector.Latest(serverID); latest != nil {
		if err := conn.WriteJSON(latest); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(s); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
