// Package buildinfo carries version metadata stamped in at link time via
// -ldflags, matching cmd/ployzd's buildinfo.Version usage in the teacher
// repo.
package buildinfo

// Version is overridden at build time with -ldflags
// "-X github.com/kprusa/dvrouted/internal/buildinfo.Version=...". It
// defaults to "dev" for local builds.
var Version = "dev"
