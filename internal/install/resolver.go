package install

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/depotmate/configs"
)

// EligibilityResult says whether an install directory has exactly one
// launchable executable. Reason carries the human-readable remedy when
// it does not.
type EligibilityResult struct {
	Eligible   bool
	ExePath    string
	Candidates int
	Reason     string
}

// Installers, uninstallers, runtime redistributables, crash reporters
// and self-updaters are never the game itself. The shipped deny-list
// lives in configs/excluded_executables.yaml.
var excludedExecutables = loadExcluded()

var crashHandlerPattern = regexp.MustCompile(`(?i)crash.*handler`)

func loadExcluded() map[string]struct{} {
	var doc struct {
		Excluded []string `yaml:"excluded"`
	}
	if err := yaml.Unmarshal(configs.ExcludedExecutables, &doc); err != nil {
		panic(fmt.Sprintf("install: malformed embedded deny-list: %v", err))
	}
	set := make(map[string]struct{}, len(doc.Excluded))
	for _, name := range doc.Excluded {
		set[strings.ToLower(name)] = struct{}{}
	}
	return set
}

// Resolve locates the marker file under installDir and decides whether
// the marker's directory holds exactly one launchable executable. The
// search never descends below the marker's own directory.
func Resolve(installDir string) EligibilityResult {
	markerDir, _, err := FindMarker(installDir)
	if err != nil {
		return EligibilityResult{Reason: fmt.Sprintf("not a managed install: %v", err)}
	}
	return ResolveIn(markerDir)
}

// ResolveIn applies the executable search to one directory.
func ResolveIn(dir string) EligibilityResult {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return EligibilityResult{Reason: fmt.Sprintf("cannot read %s: %v", dir, err)}
	}

	var candidates []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.EqualFold(filepath.Ext(name), ".exe") {
			continue
		}
		lower := strings.ToLower(name)
		if _, excluded := excludedExecutables[lower]; excluded {
			continue
		}
		if crashHandlerPattern.MatchString(name) {
			continue
		}
		candidates = append(candidates, filepath.Join(dir, name))
	}

	switch len(candidates) {
	case 0:
		return EligibilityResult{
			Candidates: 0,
			Reason:     "no executable found in " + dir,
		}
	case 1:
		return EligibilityResult{
			Eligible:   true,
			ExePath:    candidates[0],
			Candidates: 1,
		}
	default:
		return EligibilityResult{
			Candidates: len(candidates),
			Reason: fmt.Sprintf("found %d executable candidates in %s; add the shortcut manually",
				len(candidates), dir),
		}
	}
}
