package config

import "fmt"

// Set with -ldflags "-X eventgate/internal/config.version=...". Local builds
// keep the defaults.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the linked build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// String renders "version (commit, built time)" for startup logs.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s, built %s)", b.Version, b.Commit, b.BuildTime)
}

// UserAgent is the outbound User-Agent used when HTTP_USER_AGENT is empty.
func (b BuildInfo) UserAgent(service string) string {
	if service == "" {
		service = "eventgate"
	}
	return service + "/" + b.Version
}
