package downloader

import "fmt"

// Phase is the lifecycle state of a download session.
type Phase string

const (
	PhasePending       Phase = "pending"
	PhasePreallocating Phase = "preallocating"
	PhaseDownloading   Phase = "downloading"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"
	PhaseCancelled     Phase = "cancelled"
)

// Terminal reports whether the phase ends the session.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// Credentials identify the Steam account used for the download.
type Credentials struct {
	Username string
	Secret   string
	Remember bool
}

// Options tune a single download invocation.
type Options struct {
	// OSTag selects the depot platform, e.g. "windows".
	OSTag string
	// ManualCode makes the downloader wait for a typed Guard code
	// instead of polling the mobile confirmation.
	ManualCode bool
	// Verbose forwards unclassified output lines as noise events.
	Verbose bool
}

// Result is the terminal outcome of a session.
type Result struct {
	Phase   Phase
	Message string
}

// LaunchError means the downloader executable could not be found or
// started. Fatal to the session, surfaced immediately from Start.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("downloader: cannot launch %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
