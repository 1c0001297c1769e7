package buildconfig

import (
	"fmt"
	"runtime"
)

// Build-time variables injected via ldflags:
//
//	-X github.com/Harshitk-cp/kindred/internal/buildconfig.version=v1.2.0
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

// Version returns the build version
func Version() string {
	return version
}

// Commit returns the git commit hash
func Commit() string {
	return commit
}

// VersionInfo is served on /version and printed by kindredctl.
func VersionInfo() map[string]string {
	info := map[string]string{
		"version":    version,
		"commit":     commit,
		"go_version": runtime.Version(),
	}
	if buildDate != "" {
		info["build_date"] = buildDate
	}
	return info
}

// String renders a one-line version banner.
func String() string {
	short := commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("kindred %s (%s, %s)", version, short, runtime.Version())
}
