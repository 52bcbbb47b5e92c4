// Package version holds build metadata injected via ldflags:
//
//	go build -ldflags "-X github.com/kailas-cloud/examharvest/internal/version.Version=v1.2.0 \
//	  -X github.com/kailas-cloud/examharvest/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent is the default upstream User-Agent suffix identifying this build.
func UserAgent() string {
	return fmt.Sprintf("examharvest/%s (+%s)", Version, Commit)
}
