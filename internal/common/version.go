package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Set at build time via ldflags.
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the semantic version string
func GetVersion() string {
	return Version
}

// GetBuild returns the build timestamp
func GetBuild() string {
	return Build
}

// GetGitCommit returns the short git commit hash
func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns a formatted version string with all build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// versionDefaults mark the slots the linker left untouched; only those
// may be overlaid from the .version file.
var versionDefaults = map[string]string{
	"version": "dev",
	"build":   "unknown",
	"commit":  "unknown",
}

// LoadVersionFromFile overlays version info from a .version file next
// to the binary. A "key: value" line fills its slot only when ldflags
// did not already set it.
func LoadVersionFromFile() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	raw, err := os.ReadFile(filepath.Join(filepath.Dir(exe), ".version"))
	if err != nil {
		return
	}

	slots := map[string]*string{
		"version": &Version,
		"build":   &Build,
		"commit":  &GitCommit,
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		slot, known := slots[key]
		if !known || value == "" {
			continue
		}
		if *slot == versionDefaults[key] {
			*slot = value
		}
	}
}
