package parser

import "regexp"

var (
	ansiCSI     *regexp.Regexp
	ansiOSC     *regexp.Regexp
	ansiCharset *regexp.Regexp
	ansiSingle  *regexp.Regexp
)

func init() {
	ansiCSI = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)
	ansiOSC = regexp.MustCompile(`\x1b\].*?(?:\x07|\x1b\\)`)
	ansiCharset = regexp.MustCompile(`\x1b[()][0-9A-Za-z]`)
	ansiSingle = regexp.MustCompile(`\x1b.`)
}

// scrub removes ANSI escape sequences and control bytes from one line of
// pty output. The downloader redraws its progress counter with carriage
// returns and cursor moves; only the visible text matters here.
func scrub(s string) string {
	s = ansiCSI.ReplaceAllString(s, "")
	s = ansiOSC.ReplaceAllString(s, "")
	s = ansiCharset.ReplaceAllString(s, "")
	s = ansiSingle.ReplaceAllString(s, "")

	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\b' {
			if len(result) > 0 {
				result = result[:len(result)-1]
			}
			continue
		}
		if (ch < 0x20 || ch == 0x7f) && ch != '\t' {
			continue
		}
		result = append(result, ch)
	}
	return string(result)
}
