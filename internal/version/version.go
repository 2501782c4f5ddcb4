// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

// Set at build time, e.g.
// -ldflags "-X github.com/banshee-data/sonar.report/internal/version.Version=v0.3.0".
var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for logs and -version.
func String() string {
	return fmt.Sprintf("sonar.report %s (%s, built %s)", Version, GitSHA, BuildTime)
}
