package parser

import "regexp"

var progressPattern *regexp.Regexp

func init() {
	progressPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
}

// Lines beginning with this marker are file pre-allocation notices.
// The downloader prints one per file, which can be thousands of lines.
const preallocMarker = "pre-allocating"

// guardPhrases match two-factor prompts. A line is a guard prompt when
// every substring of any one entry appears in it (case-insensitive).
var guardPhrases = [][]string{
	{"steam guard"},
	{"two-factor"},
	{"two factor"},
	{"2fa"},
	{"authenticator"},
	{"auth code"},
	{"enter", "code"},
}

// importantKeywords mark milestone lines that must always reach the
// consumer: download start/completion, totals, errors, connection and
// login progress.
var importantKeywords = []string{
	"download complete",
	"downloading depot",
	"total downloaded",
	"total size",
	"error",
	"failed",
	"invalid",
	"unavailable",
	"connecting to steam",
	"logging",
	"logged in",
	"licenses",
	"got depot key",
	"disconnected",
}
