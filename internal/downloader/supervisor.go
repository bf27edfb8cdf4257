package downloader

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	creackpty "github.com/creack/pty"

	"github.com/user/depotmate/internal/cleanup"
	"github.com/user/depotmate/internal/parser"
)

// killGrace is how long Cancel waits for the process to exit after
// SIGTERM before killing it outright.
const killGrace = 5 * time.Second

// ErrSessionActive is returned by Start while a download is running.
var ErrSessionActive = errors.New("downloader: a download session is already active")

// Supervisor owns the lifecycle of the external depot-downloader
// process. At most one session is live at a time; the supervisor
// enforces that invariant rather than leaving it to callers.
//
// The downloader only prints its interactive Guard prompt on a tty,
// so the process runs under a pty. That also folds stdout and stderr
// into the single ordered stream the classifier consumes.
type Supervisor struct {
	binary  string
	cleaner *cleanup.Worker
	grace   time.Duration

	mu      sync.Mutex
	current *Session
}

func New(binary string, cleaner *cleanup.Worker) *Supervisor {
	return &Supervisor{
		binary:  binary,
		cleaner: cleaner,
		grace:   killGrace,
	}
}

// Start launches a download of appID into dir and returns its session.
// It fails with *LaunchError if the executable cannot be found or
// started, and with ErrSessionActive if a session is already live.
func (s *Supervisor) Start(appID string, creds Credentials, opts Options, dir string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, ErrSessionActive
	}

	path, err := exec.LookPath(s.binary)
	if err != nil {
		return nil, &LaunchError{Binary: s.binary, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &LaunchError{Binary: s.binary, Err: err}
	}

	cmd := exec.Command(path, buildArgs(appID, creds, opts, dir)...)
	ptmx, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{Cols: 120, Rows: 30})
	if err != nil {
		return nil, &LaunchError{Binary: s.binary, Err: err}
	}

	sess := &Session{
		id:         newID(),
		appID:      appID,
		dir:        dir,
		createdAt:  time.Now(),
		cmd:        cmd,
		ptmx:       ptmx,
		classifier: parser.NewClassifier(opts.Verbose),
		events:     make(chan parser.Event, 1024),
		scanDone:   make(chan struct{}),
		done:       make(chan struct{}),
		phase:      PhasePending,
	}
	s.current = sess

	go sess.readPump()
	go s.waitExit(sess)

	slog.Info("download started", "session", sess.id, "app", appID, "dir", dir)
	return sess, nil
}

// Current returns the live session, or nil.
func (s *Supervisor) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SubmitCode writes one Guard code line to the process input. If the
// process has already exited this is a logged no-op, never an error:
// codes arrive from humans and routinely race the download finishing.
func (s *Supervisor) SubmitCode(code string) {
	sess := s.Current()
	if sess == nil {
		slog.Warn("guard code ignored, no active download")
		return
	}
	if err := sess.write(code + "\n"); err != nil {
		slog.Warn("guard code not delivered", "session", sess.id, "error", err)
	}
}

// Cancel requests termination of the live session: SIGTERM first, an
// unconditional kill if the process is still there after the grace
// period. Cleanup of the partial directory is always scheduled once
// the session finishes; Cancel does not wait for either.
func (s *Supervisor) Cancel() {
	sess := s.Current()
	if sess == nil {
		return
	}
	if sess.cancelled.Swap(true) {
		return
	}
	slog.Info("cancelling download", "session", sess.id, "app", sess.appID)

	if sess.cmd.Process != nil {
		_ = sess.cmd.Process.Signal(syscall.SIGTERM)
	}
	go func() {
		select {
		case <-sess.done:
		case <-time.After(s.grace):
			if sess.cmd.Process != nil {
				_ = sess.cmd.Process.Kill()
			}
		}
	}()
}

// waitExit blocks until the process exits, settles the terminal phase,
// closes the event stream, and schedules cleanup for anything short of
// a completed download. Whatever goes wrong while waiting becomes a
// Failed result; nothing propagates out of the supervisor.
func (s *Supervisor) waitExit(sess *Session) {
	waitErr := wait(sess.cmd)

	// Unblock the reader, then let it drain before closing the stream.
	_ = sess.ptmx.Close()
	<-sess.scanDone

	phase := PhaseCompleted
	message := "download complete"
	switch {
	case sess.cancelled.Load():
		phase = PhaseCancelled
		message = "download cancelled"
	case waitErr != nil:
		phase = PhaseFailed
		message = waitErr.Error()
	}

	sess.finish(phase, message)
	close(sess.events)
	close(sess.done)
	slog.Info("download finished", "session", sess.id, "app", sess.appID, "phase", phase)

	if phase != PhaseCompleted && s.cleaner != nil {
		dir := sess.dir
		s.cleaner.Delete(dir,
			func(n int) {
				slog.Info("cleanup progress", "dir", dir, "files", n)
			},
			func(err error) {
				if err != nil {
					slog.Warn("cleanup failed", "dir", dir, "error", err)
				}
			})
	}

	s.mu.Lock()
	if s.current == sess {
		s.current = nil
	}
	s.mu.Unlock()
}

func wait(cmd *exec.Cmd) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("wait panicked: %v", r)
		}
	}()
	return cmd.Wait()
}

// buildArgs assembles the downloader's fixed argument grammar.
func buildArgs(appID string, creds Credentials, opts Options, dir string) []string {
	args := []string{"-app", appID, "-username", creds.Username, "-password", creds.Secret}
	if creds.Remember {
		args = append(args, "-remember-password")
	}
	args = append(args, "-os", opts.OSTag)
	if opts.ManualCode {
		args = append(args, "-manual-code")
	}
	return append(args, "-dir", dir)
}

func newID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
