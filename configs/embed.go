package configs

import _ "embed"

// ExcludedExecutables is the shipped deny-list of executable names that
// are never treated as the launchable app (installers, redistributables,
// crash reporters and the like).
//
//go:embed excluded_executables.yaml
var ExcludedExecutables []byte
