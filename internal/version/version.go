// Package version reports build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/smazurov/pingnode/internal/version.Version=1.2.0"
package version

import (
	"fmt"
	"runtime"
)

// Set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	BuildID   = "unknown"
)

// Info is the build metadata served by /api/version.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

// Get returns the metadata of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the version, with the short commit for non-release builds.
func String() string {
	if Version == "dev" && GitCommit != "unknown" {
		return fmt.Sprintf("dev+%.7s", GitCommit)
	}
	return Version
}

// Component names one part of pingnode for peers, e.g. "pingnode-bridge/1.2.0".
// Used as the NATS connection name so servers can tell nodes and CLIs apart.
func Component(name string) string {
	return "pingnode-" + name + "/" + String()
}
