// Package shortcuts maintains non-Steam shortcut entries across every
// Steam user profile found under the client's userdata directory.
//
// Steam may read or rewrite the same files while its client is running;
// mutations here are plain read-modify-write with no locking, and
// callers compensate by re-verifying with VerifyExists before trusting
// earlier state.
package shortcuts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/depotmate/internal/vdf"
)

// PartialWriteError reports a failed store rewrite. The in-memory
// mutation is not durably applied; the caller must retry or surface it.
type PartialWriteError struct {
	Path string
	Err  error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("shortcuts: rewrite of %s failed: %v", e.Path, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// Repository reads and rewrites shortcuts.vdf stores per user profile.
type Repository struct {
	steamRoot string
}

func NewRepository(steamRoot string) *Repository {
	return &Repository{steamRoot: steamRoot}
}

// Profiles lists the per-user profile directories under userdata.
// Profile directories are named by numeric account ids; anything else
// is ignored.
func (r *Repository) Profiles() ([]string, error) {
	userdata := filepath.Join(r.steamRoot, "userdata")
	dirEntries, err := os.ReadDir(userdata)
	if err != nil {
		return nil, fmt.Errorf("shortcuts: read userdata dir: %w", err)
	}

	var profiles []string
	for _, de := range dirEntries {
		if !de.IsDir() || !isNumeric(de.Name()) {
			continue
		}
		profiles = append(profiles, filepath.Join(userdata, de.Name()))
	}
	return profiles, nil
}

// FindByName returns the entry whose app name matches case-insensitively,
// or nil if the profile has no such entry.
func (r *Repository) FindByName(profileDir, name string) (*vdf.ShortcutEntry, error) {
	entries, err := r.load(profileDir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if strings.EqualFold(e.AppName, name) {
			return e, nil
		}
	}
	return nil, nil
}

// Exists reports whether any entry in the profile matches by normalized
// executable path (case-sensitive) or by app name (case-insensitive).
func (r *Repository) Exists(profileDir, exePath, name string) (bool, error) {
	entries, err := r.load(profileDir)
	if err != nil {
		return false, err
	}
	return containsMatch(entries, exePath, name), nil
}

// Add appends a shortcut to every profile that does not already have a
// matching entry, rewriting each store. It returns true if at least one
// profile gained the entry. Per-profile failures are joined into the
// returned error but do not stop the remaining profiles.
func (r *Repository) Add(exePath, name, startDir, iconPath string) (bool, error) {
	profiles, err := r.Profiles()
	if err != nil {
		return false, err
	}

	added := false
	var errs []error
	for _, profile := range profiles {
		entries, err := r.load(profile)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if containsMatch(entries, exePath, name) {
			slog.Debug("shortcut already present", "profile", profile, "name", name)
			continue
		}

		entries = append(entries, &vdf.ShortcutEntry{
			AppName:            name,
			Exe:                exePath,
			StartDir:           startDir,
			Icon:               iconPath,
			AllowDesktopConfig: true,
			AllowOverlay:       true,
			Tags:               map[string]string{},
		})
		if err := r.save(profile, entries); err != nil {
			errs = append(errs, err)
			continue
		}
		added = true
		slog.Info("shortcut added", "profile", profile, "name", name, "exe", exePath)
	}
	return added, errors.Join(errs...)
}

// Remove deletes the entry matching name from every profile that has
// one and rewrites the store. Encoding renumbers indices, so remaining
// entries always occupy the contiguous range 0..N-1 in their prior
// relative order. Returns true if removed from at least one profile.
func (r *Repository) Remove(name string) (bool, error) {
	profiles, err := r.Profiles()
	if err != nil {
		return false, err
	}

	removed := false
	var errs []error
	for _, profile := range profiles {
		entries, err := r.load(profile)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		idx := -1
		for i, e := range entries {
			if strings.EqualFold(e.AppName, name) {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		entries = append(entries[:idx], entries[idx+1:]...)
		if err := r.save(profile, entries); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = true
		slog.Info("shortcut removed", "profile", profile, "name", name)
	}
	return removed, errors.Join(errs...)
}

// VerifyExists reports whether any profile still has an entry with the
// given name. Read-only; used to detect entries the Steam client itself
// removed behind our back.
func (r *Repository) VerifyExists(name string) bool {
	profiles, err := r.Profiles()
	if err != nil {
		slog.Warn("shortcut verification skipped", "error", err)
		return false
	}
	for _, profile := range profiles {
		entry, err := r.FindByName(profile, name)
		if err != nil {
			slog.Warn("shortcut verification failed for profile", "profile", profile, "error", err)
			continue
		}
		if entry != nil {
			return true
		}
	}
	return false
}

func (r *Repository) load(profileDir string) ([]*vdf.ShortcutEntry, error) {
	path := storePath(profileDir)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("shortcuts: read %s: %w", path, err)
	}
	return vdf.Decode(data)
}

func (r *Repository) save(profileDir string, entries []*vdf.ShortcutEntry) error {
	path := storePath(profileDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &PartialWriteError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, vdf.Encode(entries), 0o644); err != nil {
		return &PartialWriteError{Path: path, Err: err}
	}
	return nil
}

func storePath(profileDir string) string {
	return filepath.Join(profileDir, "config", "shortcuts.vdf")
}

func containsMatch(entries []*vdf.ShortcutEntry, exePath, name string) bool {
	want := normalizeExe(exePath)
	for _, e := range entries {
		if normalizeExe(e.Exe) == want || strings.EqualFold(e.AppName, name) {
			return true
		}
	}
	return false
}

// normalizeExe strips the quoting Steam applies to executable paths and
// cleans the result. Comparison stays case-sensitive.
func normalizeExe(path string) string {
	path = strings.Trim(strings.TrimSpace(path), `"`)
	return filepath.Clean(path)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
