package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	preallocInterval = time.Second
	noiseInterval    = 100 * time.Millisecond
)

// Classifier turns raw downloader output lines into typed events.
//
// Classification is stateful: pre-allocation notices collapse into a
// single phase change plus a once-per-second summary, and the first
// ordinary line after pre-allocation marks the start of the download
// phase. Rules are applied in a fixed order; a line matching several
// categories takes the first match (guard prompts win over progress).
type Classifier struct {
	verbose bool
	now     func() time.Time

	preallocating bool
	preallocCount int
	lastPrealloc  time.Time
	lastNoise     time.Time
}

func NewClassifier(verbose bool) *Classifier {
	return &Classifier{
		verbose: verbose,
		now:     time.Now,
	}
}

// Classify maps one raw line to zero, one, or two events. Two events
// occur when a line also closes the pre-allocation phase. A nil result
// means the line was absorbed (throttled or noise with verbosity off).
func (c *Classifier) Classify(raw string) []Event {
	line := strings.TrimSpace(scrub(raw))
	if line == "" {
		return nil
	}

	now := c.now()
	lower := strings.ToLower(line)

	if strings.HasPrefix(lower, preallocMarker) {
		c.preallocCount++
		if !c.preallocating {
			c.preallocating = true
			c.lastPrealloc = now
			return []Event{{Type: EventPhase, Phase: PhasePreallocating, Line: line, Timestamp: now}}
		}
		if now.Sub(c.lastPrealloc) >= preallocInterval {
			c.lastPrealloc = now
			summary := fmt.Sprintf("pre-allocated %d files", c.preallocCount)
			return []Event{{Type: EventImportant, Line: summary, Timestamp: now}}
		}
		return nil
	}

	var events []Event
	if c.preallocating {
		c.preallocating = false
		c.preallocCount = 0
		events = append(events, Event{Type: EventPhase, Phase: PhaseDownloading, Line: line, Timestamp: now})
	}

	if isGuardPrompt(lower) {
		return append(events, Event{Type: EventGuardPrompt, Line: line, Timestamp: now})
	}

	if pct, ok := parsePercent(line); ok {
		return append(events, Event{Type: EventProgress, Line: line, Percent: pct, Timestamp: now})
	}

	if isImportant(lower) {
		return append(events, Event{Type: EventImportant, Line: line, Timestamp: now})
	}

	if !c.verbose {
		return events
	}
	if !c.lastNoise.IsZero() && now.Sub(c.lastNoise) < noiseInterval {
		return events
	}
	c.lastNoise = now
	return append(events, Event{Type: EventNoise, Line: line, Timestamp: now})
}

func isGuardPrompt(lower string) bool {
	for _, parts := range guardPhrases {
		matched := true
		for _, p := range parts {
			if !strings.Contains(lower, p) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func isImportant(lower string) bool {
	for _, kw := range importantKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func parsePercent(line string) (float64, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct > 100 {
		return 0, false
	}
	return pct, true
}
