// Package version exposes the haystackd build stamp, reported by the
// health endpoint and the daemon's startup log line.
package version

// Overridden at link time with -ldflags; "dev" marks a local build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
