// Package overseer runs external programs under supervision and reduces
// their output streams and exit status to a single verdict.
package overseer

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/deixis/overseer.Version=...".
var Version = "v0.1.0-dev"
