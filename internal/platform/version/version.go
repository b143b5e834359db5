// Package version carries build identification, stamped via ldflags:
//
//	-X .../internal/platform/version.Version=v1.2.3
//	-X .../internal/platform/version.Commit=$(git rev-parse --short HEAD)
//	-X .../internal/platform/version.BuildTime=$(date -u +%FT%TZ)
//
// Unstamped builds report "dev". Served verbatim on the ops /version
// endpoint.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the JSON shape of the /version endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String renders the one-line form used in startup logs.
func (i Info) String() string {
	return fmt.Sprintf("%s (%s)", i.Version, i.Commit)
}
