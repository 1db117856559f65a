// Package version reports the build of the running binary.
package version

import "runtime/debug"

// Set with -ldflags "-X github.com/kailas-cloud/hybridex/internal/version.Version=...".
//
//nolint:revive
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the build identity reported by health checks and the CLI.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date,omitempty"`
}

// Get returns the ldflags values, falling back to the VCS stamp that
// go build embeds when no commit was injected.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	if info.Commit != "" {
		return info
	}
	info.Commit = "unknown"
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		}
	}
	return info
}

// String renders the info for --version output.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	s := i.Version + " (" + commit
	if i.Date != "" {
		s += ", " + i.Date
	}
	return s + ")"
}
