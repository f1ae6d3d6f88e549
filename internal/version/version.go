// Package version holds build metadata stamped at link time.
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
