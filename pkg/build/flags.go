// SPDX-License-Identifier: MIT
//
// Package build carries metadata stamped into the binary at compile
// time with -ldflags: application name, semantic version, Git commit
// and build timestamp. Unstamped development builds fall back to
// placeholder values instead of failing.
package build

import "fmt"

type Info struct {
	Name    string
	Version string
	Commit  string
	Time    string
}

// Populated by -ldflags at link time; empty in development builds.
var (
	buildName    string
	buildVersion string
	buildCommit  string
	buildTime    string

	info = &Info{
		Name:    "viz",
		Version: "dev",
		Commit:  "unknown",
		Time:    "unknown",
	}
)

// Initialize copies any stamped ldflags values over the development
// defaults. Call once early in startup, before anything reads Get().
func Initialize() {
	if buildName != "" {
		info.Name = buildName
	}
	if buildVersion != "" {
		info.Version = buildVersion
	}
	if buildCommit != "" {
		info.Commit = buildCommit
	}
	if buildTime != "" {
		info.Time = buildTime
	}
}

// Get returns the build metadata for this binary.
func Get() *Info {
	return info
}

// String renders the metadata in a single line suitable for a
// --version flag.
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (%s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}
