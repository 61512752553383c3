package version

// Version is the build version, overridden at link time with
// -ldflags "-X github.com/sydlexius/cadenza/internal/version.Version=v1.2.3".
var Version = "dev"

// Commit is the VCS revision the binary was built from.
var Commit = "unknown"
