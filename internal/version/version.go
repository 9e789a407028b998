// Package version holds the release version, overridden at link time.
package version

// Version is set with -ldflags "-X github.com/napcas-ml/napcas/internal/version.Version=...".
var Version = "0.1.0-dev"
