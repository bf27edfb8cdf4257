// Package api exposes the HTTP control surface: starting, steering and
// inspecting downloads, and registering installed apps as Steam
// shortcuts.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/user/depotmate/internal/downloader"
	"github.com/user/depotmate/internal/hub"
	"github.com/user/depotmate/internal/journal"
	"github.com/user/depotmate/internal/shortcuts"
)

type handler struct {
	supervisor   *downloader.Supervisor
	journal      *journal.Journal
	hub          *hub.Hub
	shortcuts    *shortcuts.Repository
	downloadRoot string
	verbose      bool
}

func NewRouter(sup *downloader.Supervisor, jrnl *journal.Journal, hubInst *hub.Hub, repo *shortcuts.Repository, downloadRoot, token string, verbose bool) http.Handler {
	h := &handler{
		supervisor:   sup,
		journal:      jrnl,
		hub:          hubInst,
		shortcuts:    repo,
		downloadRoot: downloadRoot,
		verbose:      verbose,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/downloads", h.startDownload)
	mux.HandleFunc("GET /api/downloads/current", h.getCurrentDownload)
	mux.HandleFunc("GET /api/downloads/recent", h.listRecentDownloads)
	mux.HandleFunc("POST /api/downloads/cancel", h.cancelDownload)
	mux.HandleFunc("POST /api/downloads/code", h.submitCode)

	mux.HandleFunc("POST /api/library", h.registerShortcut)
	mux.HandleFunc("GET /api/library/{name}", h.getShortcut)
	mux.HandleFunc("DELETE /api/library/{name}", h.removeShortcut)

	return authMiddleware(token)(mux)
}

func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				if strings.TrimSpace(authHeader[7:]) == token {
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.URL.Query().Get("token") == token {
				next.ServeHTTP(w, r)
				return
			}

			jsonError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return io.ErrUnexpectedEOF
	}
	return nil
}
