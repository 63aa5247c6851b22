// Package version reports build information injected at link time:
//
//	go build -ldflags "-X github.com/HerbHall/heartbeat/internal/version.Version=v1.2.3"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set by -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Short returns the version string alone.
func Short() string { return Version }

// Commit returns GitCommit, falling back to the VCS revision recorded by
// the Go toolchain when ldflags did not set it.
func Commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return GitCommit
}

// Info returns a one-line human readable description of the build.
func Info() string {
	return fmt.Sprintf("heartbeat %s (commit %s, built %s, %s %s/%s)",
		Version, Commit(), BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Map returns build information for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": Commit(),
		"build_date": BuildDate,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}
