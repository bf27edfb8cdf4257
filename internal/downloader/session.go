package downloader

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/depotmate/internal/parser"
)

// Session is one live download: the supervised process, its pty, and
// the ordered event stream produced from its output. Sessions are
// created by Supervisor.Start and owned by exactly one supervisor;
// the events channel is consumed by exactly one subscriber.
type Session struct {
	id        string
	appID     string
	dir       string
	createdAt time.Time

	cmd  *exec.Cmd
	ptmx *os.File

	classifier *parser.Classifier
	events     chan parser.Event

	cancelled atomic.Bool
	scanDone  chan struct{}
	done      chan struct{}

	mu      sync.Mutex
	phase   Phase
	percent float64
	message string
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// AppID returns the product being downloaded.
func (s *Session) AppID() string { return s.appID }

// Dir returns the target directory.
func (s *Session) Dir() string { return s.dir }

// Events returns the ordered stream of classified output events. The
// channel is closed when the session reaches a terminal phase.
func (s *Session) Events() <-chan parser.Event { return s.events }

// Done is closed once the session has a terminal Result.
func (s *Session) Done() <-chan struct{} { return s.done }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Percent returns the last parsed progress percentage.
func (s *Session) Percent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

// Result returns the terminal outcome. Valid once Done is closed.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Result{Phase: s.phase, Message: s.message}
}

// readPump reads the pty line by line, classifies each line, and
// forwards the resulting events in arrival order. It is the only
// writer to the events channel, which keeps output-driven state
// changes serialized.
func (s *Session) readPump() {
	defer close(s.scanDone)

	scanner := bufio.NewScanner(s.ptmx)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanOutputLines)

	for scanner.Scan() {
		for _, ev := range s.classifier.Classify(scanner.Text()) {
			s.apply(ev)
			s.events <- ev
		}
	}
}

func (s *Session) apply(ev parser.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Type {
	case parser.EventPhase:
		switch ev.Phase {
		case parser.PhasePreallocating:
			s.phase = PhasePreallocating
		case parser.PhaseDownloading:
			s.phase = PhaseDownloading
		}
	case parser.EventProgress:
		if s.phase == PhasePending {
			s.phase = PhaseDownloading
		}
		s.percent = ev.Percent
	}
}

func (s *Session) finish(phase Phase, message string) {
	s.mu.Lock()
	s.phase = phase
	s.message = message
	s.mu.Unlock()
}

func (s *Session) write(data string) error {
	_, err := s.ptmx.Write([]byte(data))
	return err
}

// scanOutputLines splits on both \n and \r: the downloader redraws its
// progress counter in place with bare carriage returns, and each redraw
// must be classified as its own line.
func scanOutputLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance = i + 2
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
