package vdf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

type decoder struct {
	data []byte
	pos  int
}

// Decode parses a binary shortcuts file into entries in file order.
// It fails with *FormatError if the first byte is not a map tag or the
// root key is not "shortcuts". Nested maps other than "tags" inside an
// entry are consumed and discarded; Steam itself writes children this
// codec does not model, and those must not break decoding.
func Decode(data []byte) ([]*ShortcutEntry, error) {
	d := &decoder{data: data}

	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}
	if tag != typeMap {
		return nil, d.errorf("root tag 0x%02x is not a map", tag)
	}
	key, err := d.readString()
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(key, rootKey) {
		return nil, d.errorf("root key %q is not %q", key, rootKey)
	}

	var entries []*ShortcutEntry
	for {
		tag, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if tag == typeEnd {
			break
		}
		if tag != typeMap {
			return nil, d.errorf("shortcut index has tag 0x%02x, want map", tag)
		}
		// The index key only conveys ordering; positions are
		// renumbered on encode anyway.
		if _, err := d.readString(); err != nil {
			return nil, err
		}
		entry, err := d.readEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	// End tag closing the implicit root map. Tolerate its absence;
	// anything after it is ignored.
	if d.pos < len(d.data) && d.data[d.pos] == typeEnd {
		d.pos++
	}

	return entries, nil
}

func (d *decoder) readEntry() (*ShortcutEntry, error) {
	e := &ShortcutEntry{Tags: map[string]string{}}
	for {
		tag, err := d.readByte()
		if err != nil {
			return nil, err
		}
		switch tag {
		case typeEnd:
			return e, nil

		case typeString:
			key, err := d.readString()
			if err != nil {
				return nil, err
			}
			val, err := d.readString()
			if err != nil {
				return nil, err
			}
			e.setString(key, val)

		case typeInt32:
			key, err := d.readString()
			if err != nil {
				return nil, err
			}
			val, err := d.readUint32()
			if err != nil {
				return nil, err
			}
			e.setInt(key, val)

		case typeUint64:
			if _, err := d.readString(); err != nil {
				return nil, err
			}
			if err := d.skip(8); err != nil {
				return nil, err
			}

		case typeMap:
			key, err := d.readString()
			if err != nil {
				return nil, err
			}
			if strings.EqualFold(key, "tags") {
				tags, err := d.readTags()
				if err != nil {
					return nil, err
				}
				e.Tags = tags
			} else if err := d.skipMap(); err != nil {
				return nil, err
			}

		default:
			return nil, d.errorf("unknown tag 0x%02x in shortcut entry", tag)
		}
	}
}

func (d *decoder) readTags() (map[string]string, error) {
	tags := map[string]string{}
	for {
		tag, err := d.readByte()
		if err != nil {
			return nil, err
		}
		switch tag {
		case typeEnd:
			return tags, nil
		case typeString:
			key, err := d.readString()
			if err != nil {
				return nil, err
			}
			val, err := d.readString()
			if err != nil {
				return nil, err
			}
			tags[key] = val
		case typeInt32:
			if _, err := d.readString(); err != nil {
				return nil, err
			}
			if err := d.skip(4); err != nil {
				return nil, err
			}
		case typeMap:
			if _, err := d.readString(); err != nil {
				return nil, err
			}
			if err := d.skipMap(); err != nil {
				return nil, err
			}
		default:
			return nil, d.errorf("unknown tag 0x%02x in tags map", tag)
		}
	}
}

// skipMap consumes an already-opened map, recursing into children,
// until its matching end tag.
func (d *decoder) skipMap() error {
	for {
		tag, err := d.readByte()
		if err != nil {
			return err
		}
		switch tag {
		case typeEnd:
			return nil
		case typeString:
			if _, err := d.readString(); err != nil {
				return err
			}
			if _, err := d.readString(); err != nil {
				return err
			}
		case typeInt32:
			if _, err := d.readString(); err != nil {
				return err
			}
			if err := d.skip(4); err != nil {
				return err
			}
		case typeUint64:
			if _, err := d.readString(); err != nil {
				return err
			}
			if err := d.skip(8); err != nil {
				return err
			}
		case typeMap:
			if _, err := d.readString(); err != nil {
				return err
			}
			if err := d.skipMap(); err != nil {
				return err
			}
		default:
			return d.errorf("unknown tag 0x%02x in skipped map", tag)
		}
	}
}

func (e *ShortcutEntry) setString(key, val string) {
	switch strings.ToLower(key) {
	case "appname":
		e.AppName = val
	case "exe":
		e.Exe = val
	case "startdir":
		e.StartDir = val
	case "icon":
		e.Icon = val
	case "shortcutpath":
		e.ShortcutPath = val
	case "launchoptions":
		e.LaunchOptions = val
	case "devkitgameid":
		e.DevkitGameID = val
	case "flatpakappid":
		e.FlatpakAppID = val
	}
}

func (e *ShortcutEntry) setInt(key string, val uint32) {
	switch strings.ToLower(key) {
	case "ishidden":
		e.IsHidden = val != 0
	case "allowdesktopconfig":
		e.AllowDesktopConfig = val != 0
	case "allowoverlay":
		e.AllowOverlay = val != 0
	case "openvr":
		e.OpenVR = val != 0
	case "devkit":
		e.Devkit = val != 0
	case "devkitoverrideappid":
		e.DevkitOverrideAppID = val
	case "lastplaytime":
		e.LastPlayTime = val
	}
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, d.errorf("unexpected end of data")
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readString() (string, error) {
	end := bytes.IndexByte(d.data[d.pos:], 0x00)
	if end < 0 {
		return "", d.errorf("unterminated string")
	}
	s := string(d.data[d.pos : d.pos+end])
	d.pos += end + 1
	return s, nil
}

func (d *decoder) readUint32() (uint32, error) {
	if d.pos+4 > len(d.data) {
		return 0, d.errorf("truncated int32 value")
	}
	v := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) skip(n int) error {
	if d.pos+n > len(d.data) {
		return d.errorf("truncated value")
	}
	d.pos += n
	return nil
}

func (d *decoder) errorf(format string, args ...any) error {
	return &FormatError{Msg: fmt.Sprintf(format, args...), Offset: d.pos}
}
