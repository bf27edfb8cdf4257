// Package vdf encodes and decodes Steam's binary shortcuts.vdf format:
// a tagged tree of nested maps, null-terminated UTF-8 strings and
// little-endian int32 values. Only the shortcut fields this tool works
// with are modeled; unrecognized nested maps are skipped on decode and
// lost on re-encode.
package vdf

// Binary tags. 0x07 (uint64) is accepted and skipped on decode but
// never written.
const (
	typeMap    byte = 0x00
	typeString byte = 0x01
	typeInt32  byte = 0x02
	typeUint64 byte = 0x07
	typeEnd    byte = 0x08
)

// rootKey is the sole key of the top-level map in a shortcuts file.
const rootKey = "shortcuts"

// ShortcutEntry is one non-Steam application entry. Field names mirror
// the keys Steam writes; boolean flags are stored as 0/1 int32 values.
type ShortcutEntry struct {
	AppName             string
	Exe                 string
	StartDir            string
	Icon                string
	ShortcutPath        string
	LaunchOptions       string
	IsHidden            bool
	AllowDesktopConfig  bool
	AllowOverlay        bool
	OpenVR              bool
	Devkit              bool
	DevkitGameID        string
	DevkitOverrideAppID uint32
	FlatpakAppID        string
	LastPlayTime        uint32
	Tags                map[string]string
}

// FormatError reports a malformed shortcuts file. Decoding never
// mutates the source, so a FormatError leaves the file untouched.
type FormatError struct {
	Msg    string
	Offset int
}

func (e *FormatError) Error() string {
	return "vdf: " + e.Msg
}
