// Package version carries build metadata stamped in at link time:
//
//	go build -ldflags "-X github.com/stockcast/stockcast/internal/version.Version=1.0.0 \
//	                   -X github.com/stockcast/stockcast/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/stockcast/stockcast/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Unstamped builds report "dev".
package version

var (
	// Version is the semantic version.
	Version = "dev"

	// Commit is the short git commit hash.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Info bundles the build metadata for structured output such as the
// health endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the build metadata of the running binary.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// String formats the build metadata as a single human-readable line.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
