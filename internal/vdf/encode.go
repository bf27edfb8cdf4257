package vdf

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strconv"
)

// Encode serializes entries as a complete shortcuts file. Entries are
// written in slice order and keyed by their position, so indices are
// always the contiguous range 0..N-1. Field order is fixed to match
// what Steam writes.
func Encode(entries []*ShortcutEntry) []byte {
	var buf bytes.Buffer

	writeMapHeader(&buf, rootKey)
	for i, e := range entries {
		writeMapHeader(&buf, strconv.Itoa(i))
		writeEntry(&buf, e)
		buf.WriteByte(typeEnd)
	}
	buf.WriteByte(typeEnd) // close the shortcuts map
	buf.WriteByte(typeEnd) // close the root map

	return buf.Bytes()
}

func writeEntry(buf *bytes.Buffer, e *ShortcutEntry) {
	writeString(buf, "appname", e.AppName)
	writeString(buf, "Exe", e.Exe)
	writeString(buf, "StartDir", e.StartDir)
	writeString(buf, "icon", e.Icon)
	writeString(buf, "ShortcutPath", e.ShortcutPath)
	writeString(buf, "LaunchOptions", e.LaunchOptions)
	writeInt(buf, "IsHidden", boolToUint32(e.IsHidden))
	writeInt(buf, "AllowDesktopConfig", boolToUint32(e.AllowDesktopConfig))
	writeInt(buf, "AllowOverlay", boolToUint32(e.AllowOverlay))
	writeInt(buf, "OpenVR", boolToUint32(e.OpenVR))
	writeInt(buf, "Devkit", boolToUint32(e.Devkit))
	writeString(buf, "DevkitGameID", e.DevkitGameID)
	writeInt(buf, "DevkitOverrideAppID", e.DevkitOverrideAppID)
	writeString(buf, "FlatpakAppID", e.FlatpakAppID)
	writeInt(buf, "LastPlayTime", e.LastPlayTime)

	writeMapHeader(buf, "tags")
	keys := make([]string, 0, len(e.Tags))
	for k := range e.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeString(buf, k, e.Tags[k])
	}
	buf.WriteByte(typeEnd)
}

func writeMapHeader(buf *bytes.Buffer, key string) {
	buf.WriteByte(typeMap)
	buf.WriteString(key)
	buf.WriteByte(0x00)
}

func writeString(buf *bytes.Buffer, key, val string) {
	buf.WriteByte(typeString)
	buf.WriteString(key)
	buf.WriteByte(0x00)
	buf.WriteString(val)
	buf.WriteByte(0x00)
}

func writeInt(buf *bytes.Buffer, key string, val uint32) {
	buf.WriteByte(typeInt32)
	buf.WriteString(key)
	buf.WriteByte(0x00)
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], val)
	buf.Write(raw[:])
}

func boolToUint32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
