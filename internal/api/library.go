package api

import (
	"net/http"
	"path/filepath"

	"github.com/user/depotmate/internal/install"
)

type registerShortcutRequest struct {
	Dir  string `json:"dir"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type shortcutResponse struct {
	Name       string `json:"name"`
	Exe        string `json:"exe,omitempty"`
	StartDir   string `json:"start_dir,omitempty"`
	Added      bool   `json:"added,omitempty"`
	Removed    bool   `json:"removed,omitempty"`
	Exists     bool   `json:"exists"`
	Candidates int    `json:"candidates,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// registerShortcut resolves the launchable executable inside a managed
// install directory and registers it with every Steam profile. Installs
// without exactly one eligible executable are reported back with the
// reason instead of guessing.
func (h *handler) registerShortcut(w http.ResponseWriter, r *http.Request) {
	var req registerShortcutRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Dir == "" || req.Name == "" {
		jsonError(w, http.StatusBadRequest, "dir and name are required")
		return
	}

	result := install.Resolve(req.Dir)
	if !result.Eligible {
		jsonResponse(w, http.StatusUnprocessableEntity, shortcutResponse{
			Name:       req.Name,
			Candidates: result.Candidates,
			Reason:     result.Reason,
		})
		return
	}

	startDir := filepath.Dir(result.ExePath)
	added, err := h.shortcuts.Add(result.ExePath, req.Name, startDir, req.Icon)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jsonResponse(w, http.StatusCreated, shortcutResponse{
		Name:     req.Name,
		Exe:      result.ExePath,
		StartDir: startDir,
		Added:    added,
		Exists:   h.shortcuts.VerifyExists(req.Name),
	})
}

func (h *handler) getShortcut(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	exists := h.shortcuts.VerifyExists(name)
	if !exists {
		jsonResponse(w, http.StatusNotFound, shortcutResponse{Name: name})
		return
	}
	jsonResponse(w, http.StatusOK, shortcutResponse{Name: name, Exists: true})
}

func (h *handler) removeShortcut(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	removed, err := h.shortcuts.Remove(name)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		jsonError(w, http.StatusNotFound, "no shortcut named "+name)
		return
	}
	jsonResponse(w, http.StatusOK, shortcutResponse{
		Name:    name,
		Removed: true,
		Exists:  h.shortcuts.VerifyExists(name),
	})
}
