package parser

import "time"

// EventType identifies the semantic class of one line of downloader output.
type EventType string

const (
	// EventProgress carries a parsed completion percentage.
	EventProgress EventType = "progress"
	// EventGuardPrompt indicates the downloader is waiting for a
	// two-factor code on its input. Never throttled.
	EventGuardPrompt EventType = "guard_prompt"
	// EventPhase marks a transition between download phases.
	EventPhase EventType = "phase"
	// EventImportant is a milestone line (download start/completion,
	// totals, errors, connection and login). Never throttled.
	EventImportant EventType = "important"
	// EventNoise is everything else. Delivered only in verbose mode,
	// at most one per noise interval.
	EventNoise EventType = "noise"
)

// Phase is a download phase surfaced through EventPhase.
type Phase string

const (
	PhasePreallocating Phase = "preallocating"
	PhaseDownloading   Phase = "downloading"
)

// Event is one classified line of downloader output.
type Event struct {
	Type      EventType
	Line      string
	Percent   float64
	Phase     Phase
	Timestamp time.Time
}
