package downloader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/depotmate/internal/cleanup"
	"github.com/user/depotmate/internal/parser"
)

// writeFakeDownloader writes a shell script standing in for the real
// downloader binary. The supervisor passes its fixed argument grammar;
// the scripts ignore it.
func writeFakeDownloader(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-downloader")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func collectEvents(t *testing.T, sess *Session) []parser.Event {
	t.Helper()
	var events []parser.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for session events")
		}
	}
}

func hasEvent(events []parser.Event, typ parser.EventType) bool {
	for _, ev := range events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func waitGone(t *testing.T, dir string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("directory %s still exists", dir)
}

func TestStartMissingBinary(t *testing.T) {
	sup := New(filepath.Join(t.TempDir(), "no-such-binary"), nil)
	_, err := sup.Start("440", Credentials{Username: "u", Secret: "p"}, Options{OSTag: "windows"}, t.TempDir())

	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("Start error = %v, want *LaunchError", err)
	}
}

func TestDownloadCompletes(t *testing.T) {
	bin := writeFakeDownloader(t, `
echo "Connecting to Steam3..."
echo "50.00% 1.00 GB / 2.00 GB"
echo "Depot download complete"
exit 0`)
	dir := filepath.Join(t.TempDir(), "out")
	sup := New(bin, cleanup.NewWorker())

	sess, err := sup.Start("440", Credentials{Username: "u", Secret: "p"}, Options{OSTag: "windows"}, dir)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	events := collectEvents(t, sess)
	if !hasEvent(events, parser.EventImportant) {
		t.Error("no important event seen")
	}
	var gotProgress bool
	for _, ev := range events {
		if ev.Type == parser.EventProgress && ev.Percent == 50.0 {
			gotProgress = true
		}
	}
	if !gotProgress {
		t.Errorf("no Progress(50) event in %v", events)
	}

	<-sess.Done()
	if res := sess.Result(); res.Phase != PhaseCompleted {
		t.Errorf("Result = %+v, want PhaseCompleted", res)
	}
	if sess.Percent() != 50.0 {
		t.Errorf("Percent = %v, want 50", sess.Percent())
	}
	// Successful downloads keep their directory.
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("output dir missing after success: %v", err)
	}
}

func TestDownloadFailureCleansUp(t *testing.T) {
	bin := writeFakeDownloader(t, `
echo "Error: depot key denied"
exit 3`)
	dir := filepath.Join(t.TempDir(), "out")
	sup := New(bin, cleanup.NewWorker())

	sess, err := sup.Start("440", Credentials{Username: "u", Secret: "p"}, Options{OSTag: "windows"}, dir)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	events := collectEvents(t, sess)
	if !hasEvent(events, parser.EventImportant) {
		t.Error("error line not surfaced as important event")
	}

	<-sess.Done()
	res := sess.Result()
	if res.Phase != PhaseFailed {
		t.Fatalf("Result = %+v, want PhaseFailed", res)
	}
	if res.Message == "" {
		t.Error("failed result carries no message")
	}
	waitGone(t, dir)
}

func TestCancelCleansUp(t *testing.T) {
	bin := writeFakeDownloader(t, `
echo "Connecting to Steam3..."
sleep 30`)
	dir := filepath.Join(t.TempDir(), "out")
	sup := New(bin, cleanup.NewWorker())

	sess, err := sup.Start("440", Credentials{Username: "u", Secret: "p"}, Options{OSTag: "windows"}, dir)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let it produce some output, then cancel.
	time.Sleep(300 * time.Millisecond)
	sup.Cancel()
	collectEvents(t, sess)

	<-sess.Done()
	if res := sess.Result(); res.Phase != PhaseCancelled {
		t.Errorf("Result = %+v, want PhaseCancelled", res)
	}
	waitGone(t, dir)
}

func TestSecondStartRejected(t *testing.T) {
	bin := writeFakeDownloader(t, `sleep 30`)
	sup := New(bin, nil)

	sess, err := sup.Start("440", Credentials{Username: "u", Secret: "p"}, Options{OSTag: "windows"}, filepath.Join(t.TempDir(), "a"))
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer func() {
		sup.Cancel()
		collectEvents(t, sess)
	}()

	if _, err := sup.Start("570", Credentials{Username: "u", Secret: "p"}, Options{OSTag: "windows"}, filepath.Join(t.TempDir(), "b")); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Start error = %v, want ErrSessionActive", err)
	}
}

func TestSubmitCodeReachesProcess(t *testing.T) {
	bin := writeFakeDownloader(t, `
echo "Please enter your Steam Guard code"
read code
echo "Download complete with code $code"
exit 0`)
	sup := New(bin, nil)

	sess, err := sup.Start("440", Credentials{Username: "u", Secret: "p"}, Options{OSTag: "windows", ManualCode: true, Verbose: true}, filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Wait for the prompt, then answer it.
	timeout := time.After(10 * time.Second)
	var events []parser.Event
prompt:
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				t.Fatal("stream closed before guard prompt")
			}
			events = append(events, ev)
			if ev.Type == parser.EventGuardPrompt {
				break prompt
			}
		case <-timeout:
			t.Fatal("timed out waiting for guard prompt")
		}
	}

	sup.SubmitCode("ABC123")
	events = append(events, collectEvents(t, sess)...)

	var accepted bool
	for _, ev := range events {
		if ev.Type == parser.EventImportant && ev.Line == "Download complete with code ABC123" {
			accepted = true
		}
	}
	if !accepted {
		t.Errorf("code never echoed back by process, events: %v", events)
	}

	<-sess.Done()
	// Submitting after exit is a logged no-op.
	sup.SubmitCode("TOO-LATE")
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs("440", Credentials{Username: "gordon", Secret: "hev", Remember: true},
		Options{OSTag: "windows", ManualCode: true}, "/tmp/out")
	want := []string{"-app", "440", "-username", "gordon", "-password", "hev",
		"-remember-password", "-os", "windows", "-manual-code", "-dir", "/tmp/out"}
	if len(args) != len(want) {
		t.Fatalf("buildArgs = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("buildArgs[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}
