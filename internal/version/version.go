// Package version provides build version information for the application.
// This is a separate package so cli and wailsapp can share it without an
// import cycle.
package version

// Version is the build version string, set by ldflags during build.
// Format: vX.Y.Z or vX.Y.Z-dev for development builds.
var Version = "v0.3.0-dev"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"

// String returns "vX.Y.Z (build time)".
func String() string {
	return Version + " (" + BuildTime + ")"
}
