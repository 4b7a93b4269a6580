package version

// Package version holds build-time metadata injected via -ldflags.
// When not set, helpers fall back to development defaults.

var (
	// Version is a SemVer tag like v1.2.3 for releases. Empty for dev builds.
	Version = ""
	// Commit is the short git SHA for the build.
	Commit = ""
	// Dirty is "dirty" when the working tree had uncommitted changes.
	Dirty = ""
)

// String returns a compact version for logs and the panel header.
// Releases return Version; dev builds return "dev-<sha>" ("*" suffix when
// dirty) or plain "dev" when no metadata was injected.
func String() string {
	if Version != "" {
		return Version
	}
	if Commit != "" {
		suffix := Commit
		if Dirty == "dirty" {
			suffix += "*"
		}
		return "dev-" + suffix
	}
	return "dev"
}

// UserAgent is sent with every request the panel makes to the host.
func UserAgent() string {
	return "srvpanel/" + String()
}
