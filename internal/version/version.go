// Package version carries build-time identifiers injected via -ldflags.
package version

var (
	// Version is the semantic version, overridden at build time.
	Version = "dev"
	// Commit is the short git commit hash, overridden at build time.
	Commit = "unknown"
	// BuildDate is the RFC3339 build timestamp, overridden at build time.
	BuildDate = "unknown"
)

// String returns a one-line human readable identifier for logs and the CLI's --version output.
func String() string {
	return Version + " (" + Commit + ", built " + BuildDate + ")"
}
