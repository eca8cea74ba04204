package api

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/LucasionGS/ionmc-v2/internal/backup"
	"github.com/LucasionGS/ionmc-v2/internal/manager"
	"github.com/LucasionGS/ionmc-v2/internal/minecraft"
)

type BackupHandler struct {
	manager *manager.Manager
	backups *backup.Service
}

func NewBackupHandler(m *manager.Manager, backupSvc *backup.Service) *BackupHandler {
	return &BackupHandler{manager: m, backups: backupSvc}
}

// List returns all backups for a server.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

// Create archives the server's data directory.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	b, err := h.backups.Create(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create backup: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Download sends a backup file to the client.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	path, err := h.backups.FilePath(chi.URLParam(r, "id"), chi.URLParam(r, "backupId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(path))
	w.Header().Set("Content-Type", "application/gzip")
	http.ServeFile(w, r, path)
}

// Delete removes a backup.
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.backups.Delete(chi.URLParam(r, "id"), chi.URLParam(r, "backupId")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete backup")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "backup deleted"})
}

// Restore extracts a backup over the server's data directory. The
// server must not be running.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "id")

	srv, err := h.manager.Server(serverID)
	if err != nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	if state := srv.State(); state == minecraft.StateStarting || state == minecraft.StateReady {
		writeError(w, http.StatusConflict, "stop the server before restoring a backup")
		return
	}

	if err := h.backups.Restore(serverID, chi.URLParam(r, "backupId")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to restore backup: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "backup restored"})
}
