// Package install inspects managed install directories: the app-id
// marker file that ties a directory to a product, and the eligibility
// check that picks the executable to register with Steam.
package install

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// MarkerName is the file written into an install directory after a
// successful download. Its content is the numeric app id.
const MarkerName = "depotmate_appid.txt"

// WriteMarker tags dir as belonging to appID.
func WriteMarker(dir, appID string) error {
	path := filepath.Join(dir, MarkerName)
	if err := os.WriteFile(path, []byte(appID+"\n"), 0o644); err != nil {
		return fmt.Errorf("install: write marker %s: %w", path, err)
	}
	return nil
}

// ReadMarker returns the app id stored in dir's marker file.
func ReadMarker(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, MarkerName))
	if err != nil {
		return "", fmt.Errorf("install: read marker in %s: %w", dir, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// FindMarker locates the marker file directly inside dir or in any
// subdirectory, returning the directory that holds it and the app id.
// Download layouts nest the actual game under depot subdirectories, so
// the marker's own directory is what later executable searches scope to.
func FindMarker(dir string) (markerDir, appID string, err error) {
	found := ""
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable subtree, keep looking elsewhere
		}
		if !d.IsDir() && d.Name() == MarkerName {
			found = filepath.Dir(path)
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", "", fmt.Errorf("install: scan %s: %w", dir, err)
	}
	if found == "" {
		return "", "", fmt.Errorf("install: no %s under %s", MarkerName, dir)
	}
	appID, err = ReadMarker(found)
	if err != nil {
		return "", "", err
	}
	return found, appID, nil
}
