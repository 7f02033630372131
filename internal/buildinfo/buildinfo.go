// Package buildinfo exposes the version stamped at build time.
package buildinfo

// Version is overridden via -ldflags "-X flock/internal/buildinfo.Version=...".
var Version = "dev"
