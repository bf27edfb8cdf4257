package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/user/depotmate/internal/downloader"
	"github.com/user/depotmate/internal/hub"
	"github.com/user/depotmate/internal/install"
	"github.com/user/depotmate/internal/journal"
	"github.com/user/depotmate/internal/parser"
)

type startDownloadRequest struct {
	AppID      string `json:"app_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Remember   bool   `json:"remember,omitempty"`
	OS         string `json:"os,omitempty"`
	ManualCode bool   `json:"manual_code,omitempty"`
}

type downloadResponse struct {
	SessionID string  `json:"session_id"`
	JournalID string  `json:"journal_id,omitempty"`
	AppID     string  `json:"app_id"`
	Dir       string  `json:"dir"`
	Phase     string  `json:"phase"`
	Percent   float64 `json:"percent,omitempty"`
}

type submitCodeRequest struct {
	Code string `json:"code"`
}

func (h *handler) startDownload(w http.ResponseWriter, r *http.Request) {
	var req startDownloadRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := strconv.ParseUint(req.AppID, 10, 32); err != nil {
		jsonError(w, http.StatusBadRequest, "app_id must be a numeric Steam app id")
		return
	}
	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if req.OS == "" {
		req.OS = "windows"
	}

	dir := filepath.Join(h.downloadRoot, req.AppID)
	creds := downloader.Credentials{Username: req.Username, Secret: req.Password, Remember: req.Remember}
	opts := downloader.Options{OSTag: req.OS, ManualCode: req.ManualCode, Verbose: h.verbose}

	sess, err := h.supervisor.Start(req.AppID, creds, opts, dir)
	if err != nil {
		var launchErr *downloader.LaunchError
		switch {
		case errors.Is(err, downloader.ErrSessionActive):
			jsonError(w, http.StatusConflict, err.Error())
		case errors.As(err, &launchErr):
			jsonError(w, http.StatusBadGateway, err.Error())
		default:
			jsonError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if err := install.WriteMarker(dir, req.AppID); err != nil {
		slog.Warn("marker not written", "dir", dir, "error", err)
	}

	var journalID string
	if h.journal != nil {
		journalID, err = h.journal.Record(r.Context(), req.AppID, dir)
		if err != nil {
			slog.Error("download not journaled", "app", req.AppID, "error", err)
		}
	}

	go h.pumpSession(sess, journalID)

	jsonResponse(w, http.StatusCreated, downloadResponse{
		SessionID: sess.ID(),
		JournalID: journalID,
		AppID:     sess.AppID(),
		Dir:       sess.Dir(),
		Phase:     string(sess.Phase()),
	})
}

// pumpSession is the session's single event subscriber. It forwards
// classified lines to websocket clients and stamps the terminal outcome
// into the journal once the stream closes.
func (h *handler) pumpSession(sess *downloader.Session, journalID string) {
	for ev := range sess.Events() {
		if h.hub != nil {
			h.hub.BroadcastEvent(eventMessage(sess.ID(), ev))
		}
	}

	<-sess.Done()
	res := sess.Result()

	if h.journal != nil && journalID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.journal.Finish(ctx, journalID, string(res.Phase), res.Message); err != nil {
			slog.Error("journal finish failed", "id", journalID, "error", err)
		}
		cancel()
	}
	if h.hub != nil {
		h.hub.BroadcastStatus(hub.StatusMessage{
			Session: sess.ID(),
			AppID:   sess.AppID(),
			Status:  string(res.Phase),
			Message: res.Message,
		})
	}
}

func eventMessage(sessionID string, ev parser.Event) hub.EventMessage {
	return hub.EventMessage{
		Session: sessionID,
		Kind:    string(ev.Type),
		Line:    ev.Line,
		Percent: ev.Percent,
		Phase:   string(ev.Phase),
		Ts:      ev.Timestamp.UnixMilli(),
	}
}

func (h *handler) getCurrentDownload(w http.ResponseWriter, r *http.Request) {
	sess := h.supervisor.Current()
	if sess == nil {
		jsonError(w, http.StatusNotFound, "no active download")
		return
	}
	jsonResponse(w, http.StatusOK, downloadResponse{
		SessionID: sess.ID(),
		AppID:     sess.AppID(),
		Dir:       sess.Dir(),
		Phase:     string(sess.Phase()),
		Percent:   sess.Percent(),
	})
}

func (h *handler) listRecentDownloads(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		jsonResponse(w, http.StatusOK, []*journal.Entry{})
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, entries)
}

func (h *handler) cancelDownload(w http.ResponseWriter, r *http.Request) {
	if h.supervisor.Current() == nil {
		jsonError(w, http.StatusNotFound, "no active download")
		return
	}
	h.supervisor.Cancel()
	jsonResponse(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (h *handler) submitCode(w http.ResponseWriter, r *http.Request) {
	var req submitCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Code == "" {
		jsonError(w, http.StatusBadRequest, "code is required")
		return
	}
	if h.supervisor.Current() == nil {
		jsonError(w, http.StatusNotFound, "no active download")
		return
	}
	h.supervisor.SubmitCode(req.Code)
	jsonResponse(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}
