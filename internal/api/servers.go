package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LucasionGS/ionmc-v2/internal/manager"
	"github.com/LucasionGS/ionmc-v2/internal/minecraft"
)

// stopGrace bounds a graceful stop before the handler escalates to kill.
const stopGrace = 30 * time.Second

type ServerHandler struct {
	manager *manager.Manager
}

func NewServerHandler(m *manager.Manager) *ServerHandler {
	return &ServerHandler{manager: m}
}

// serverView augments the registry record with live supervisor state.
type serverView struct {
	*manager.Record
	State   string   `json:"state"`
	Players []string `json:"players"`
}

func (h *ServerHandler) view(rec *manager.Record) serverView {
	v := serverView{Record: rec, State: minecraft.StateOffline.String(), Players: []string{}}
	if srv, err := h.manager.Server(rec.ID); err == nil {
		v.State = srv.State().String()
		v.Players = srv.Players()
	}
	return v
}

func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.manager.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list servers")
		return
	}
	views := make([]serverView, 0, len(records))
	for i := range records {
		views = append(views, h.view(&records[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.manager.GetRecord(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	writeJSON(w, http.StatusOK, h.view(rec))
}

func (h *ServerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params manager.CreateParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := h.manager.Create(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create server: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, h.view(rec))
}

func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, manager.ErrNotFound) {
			writeError(w, http.StatusNotFound, "server not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete server")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "server deleted"})
}

func (h *ServerHandler) Start(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.Start(r.Context(), id); err != nil {
		h.writeOpError(w, err, "failed to start server")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": minecraft.StateStarting.String()})
}

// Stop performs a graceful stop, escalating to kill when the process
// does not exit within the grace period.
func (h *ServerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), stopGrace)
	defer cancel()

	err := h.manager.Stop(ctx, id)
	if errors.Is(err, context.DeadlineExceeded) {
		if killErr := h.manager.Kill(id); killErr != nil {
			writeError(w, http.StatusInternalServerError, "failed to kill server")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"state": minecraft.StateExited.String(), "escalated": "kill"})
		return
	}
	if err != nil {
		h.writeOpError(w, err, "failed to stop server")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": minecraft.StateExited.String()})
}

func (h *ServerHandler) Restart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), stopGrace)
	defer cancel()
	if err := h.manager.Restart(ctx, id); err != nil {
		h.writeOpError(w, err, "failed to restart server")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": minecraft.StateStarting.String()})
}

func (h *ServerHandler) Kill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.Kill(id); err != nil {
		h.writeOpError(w, err, "failed to kill server")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": minecraft.StateExited.String()})
}

// Command forwards a console command through the server's stdin.
func (h *ServerHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Command == "" {
		writeError(w, http.StatusBadRequest, "command required")
		return
	}

	srv, err := h.manager.Server(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	if err := srv.WriteLine(req.Command); err != nil {
		h.writeOpError(w, err, "failed to send command")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "command sent"})
}

// Players queries the live player list through the console channel.
func (h *ServerHandler) Players(w http.ResponseWriter, r *http.Request) {
	srv, err := h.manager.Server(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	players, err := srv.GetPlayers(r.Context())
	if err != nil {
		h.writeOpError(w, err, "failed to list players")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players, "count": len(players)})
}

// Rcon issues a command over the server's remote console session and
// returns the response body.
func (h *ServerHandler) Rcon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Command == "" {
		writeError(w, http.StatusBadRequest, "command required")
		return
	}

	out, err := h.manager.SendRemote(r.Context(), chi.URLParam(r, "id"), req.Command)
	if err != nil {
		writeError(w, http.StatusBadGateway, "rcon: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": out})
}

// InstallMod downloads a catalog file into the server's mods directory.
func (h *ServerHandler) InstallMod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModID  int64 `json:"mod_id"`
		FileID int64 `json:"file_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ModID == 0 {
		writeError(w, http.StatusBadRequest, "mod_id required")
		return
	}

	name, err := h.manager.InstallMod(r.Context(), chi.URLParam(r, "id"), req.ModID, req.FileID)
	if err != nil {
		if errors.Is(err, manager.ErrNotFound) {
			writeError(w, http.StatusNotFound, "server not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to install mod: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": name})
}

func (h *ServerHandler) writeOpError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, manager.ErrNotFound):
		writeError(w, http.StatusNotFound, "server not found")
	case errors.Is(err, minecraft.ErrInvalidState), errors.Is(err, minecraft.ErrNotRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, minecraft.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, minecraft.ErrLaunch):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback+": "+err.Error())
	}
}
