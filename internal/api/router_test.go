package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/depotmate/internal/cleanup"
	"github.com/user/depotmate/internal/downloader"
	"github.com/user/depotmate/internal/install"
	"github.com/user/depotmate/internal/journal"
	"github.com/user/depotmate/internal/shortcuts"
)

const testToken = "test-token"

type testEnv struct {
	srv          *httptest.Server
	journal      *journal.Journal
	steamRoot    string
	downloadRoot string
}

func newTestEnv(t *testing.T, downloaderScript string) *testEnv {
	t.Helper()

	binDir := t.TempDir()
	bin := filepath.Join(binDir, "fake-downloader")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"+downloaderScript+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	jrnl, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = jrnl.Close() })

	steamRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(steamRoot, "userdata", "111"), 0o755); err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		journal:      jrnl,
		steamRoot:    steamRoot,
		downloadRoot: t.TempDir(),
	}
	router := NewRouter(
		downloader.New(bin, cleanup.NewWorker()),
		jrnl,
		nil,
		shortcuts.NewRepository(steamRoot),
		env.downloadRoot,
		testToken,
		false,
	)
	env.srv = httptest.NewServer(router)
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (e *testEnv) waitForStatus(t *testing.T, want string) journal.Entry {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp := e.do(t, "GET", "/api/downloads/recent", "")
		entries := decodeBody[[]journal.Entry](t, resp)
		if len(entries) > 0 && entries[0].Status == want {
			return entries[0]
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("journal never reached status %q", want)
	return journal.Entry{}
}

func TestRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t, "exit 0")

	resp, err := http.Get(env.srv.URL + "/api/downloads/recent")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestErrorResponsesAreJSON(t *testing.T) {
	env := newTestEnv(t, "exit 0")

	resp := env.do(t, "POST", "/api/downloads/cancel", "")
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	body := decodeBody[errorBody](t, resp)
	if body.Error == "" {
		t.Error("error response carries no error field")
	}
}

func TestStartDownloadValidation(t *testing.T) {
	env := newTestEnv(t, "exit 0")

	tests := []struct {
		name string
		body string
	}{
		{"non-numeric app id", `{"app_id":"half-life","username":"u","password":"p"}`},
		{"missing credentials", `{"app_id":"440"}`},
		{"malformed json", `{"app_id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "POST", "/api/downloads", tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestDownloadLifecycleJournaled(t *testing.T) {
	env := newTestEnv(t, `
echo "50.00% 1.00 GB / 2.00 GB"
echo "Depot download complete"
exit 0`)

	resp := env.do(t, "POST", "/api/downloads", `{"app_id":"440","username":"u","password":"p"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d, want 201", resp.StatusCode)
	}
	started := decodeBody[downloadResponse](t, resp)
	if started.AppID != "440" || started.SessionID == "" {
		t.Errorf("start response = %+v", started)
	}

	entry := env.waitForStatus(t, "completed")
	if entry.AppID != "440" {
		t.Errorf("journal entry = %+v", entry)
	}

	// Completed downloads keep their marker for later registration.
	appID, err := install.ReadMarker(started.Dir)
	if err != nil || appID != "440" {
		t.Errorf("ReadMarker = %q, %v", appID, err)
	}
}

func TestSecondDownloadConflicts(t *testing.T) {
	env := newTestEnv(t, "sleep 30")

	resp := env.do(t, "POST", "/api/downloads", `{"app_id":"440","username":"u","password":"p"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first start status = %d", resp.StatusCode)
	}
	defer func() {
		resp := env.do(t, "POST", "/api/downloads/cancel", "")
		resp.Body.Close()
		env.waitForStatus(t, "cancelled")
	}()

	resp = env.do(t, "POST", "/api/downloads", `{"app_id":"570","username":"u","password":"p"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", resp.StatusCode)
	}

	resp = env.do(t, "GET", "/api/downloads/current", "")
	current := decodeBody[downloadResponse](t, resp)
	if resp.StatusCode != http.StatusOK || current.AppID != "440" {
		t.Errorf("current = %d %+v", resp.StatusCode, current)
	}
}

func TestCancelWithoutActiveDownload(t *testing.T) {
	env := newTestEnv(t, "exit 0")

	resp := env.do(t, "POST", "/api/downloads/cancel", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRegisterShortcutLifecycle(t *testing.T) {
	env := newTestEnv(t, "exit 0")

	// A managed install: marker plus exactly one launchable executable.
	dir := t.TempDir()
	if err := install.WriteMarker(dir, "440"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"hl2.exe", "UnityCrashHandler64.exe"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("MZ"), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	resp := env.do(t, "POST", "/api/library", `{"dir":"`+dir+`","name":"Half-Life 2"}`)
	created := decodeBody[shortcutResponse](t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, body %+v", resp.StatusCode, created)
	}
	if !created.Added || !created.Exists {
		t.Errorf("register response = %+v", created)
	}
	if filepath.Base(created.Exe) != "hl2.exe" {
		t.Errorf("Exe = %q, want hl2.exe", created.Exe)
	}

	resp = env.do(t, "GET", "/api/library/half-life%202", "")
	got := decodeBody[shortcutResponse](t, resp)
	if resp.StatusCode != http.StatusOK || !got.Exists {
		t.Errorf("get = %d %+v", resp.StatusCode, got)
	}

	resp = env.do(t, "DELETE", "/api/library/Half-Life%202", "")
	removed := decodeBody[shortcutResponse](t, resp)
	if resp.StatusCode != http.StatusOK || !removed.Removed || removed.Exists {
		t.Errorf("delete = %d %+v", resp.StatusCode, removed)
	}

	resp = env.do(t, "GET", "/api/library/Half-Life%202", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestRegisterShortcutAmbiguousInstall(t *testing.T) {
	env := newTestEnv(t, "exit 0")

	dir := t.TempDir()
	if err := install.WriteMarker(dir, "440"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"game.exe", "editor.exe"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("MZ"), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	resp := env.do(t, "POST", "/api/library", `{"dir":"`+dir+`","name":"Ambiguous"}`)
	body := decodeBody[shortcutResponse](t, resp)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if body.Candidates != 2 || body.Reason == "" {
		t.Errorf("body = %+v", body)
	}
}
