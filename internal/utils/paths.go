// Package utils contains the logger and filesystem path helpers shared by
// the panel and the stand-in host.
package utils

import (
	"os"
	"path/filepath"
)

// Paths resolves filesystem locations used by the panel.
type Paths struct {
	RootPath string `json:"root_path"`
}

// NewPaths constructs Paths rooted at the specified directory.
func NewPaths(rootPath string) *Paths {
	return &Paths{RootPath: rootPath}
}

// DefaultPaths roots the panel state under the user config directory,
// falling back to the temp directory when none is available.
func DefaultPaths() *Paths {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return NewPaths(filepath.Join(dir, "srvpanel"))
	}
	return NewPaths(filepath.Join(os.TempDir(), "srvpanel"))
}

// ConfigFile returns the optional JSON config file path.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.RootPath, "config.json")
}

// CredentialsFile returns the path of the persisted credential map.
func (p *Paths) CredentialsFile() string {
	return filepath.Join(p.RootPath, "credentials.json")
}

// LogsDir returns the logs directory.
func (p *Paths) LogsDir() string {
	return filepath.Join(p.RootPath, "logs")
}

// LogFile returns the main panel log file path.
func (p *Paths) LogFile() string {
	return filepath.Join(p.LogsDir(), "srvpanel.log")
}

// EnsureRoot creates the root directory when missing.
func (p *Paths) EnsureRoot() error {
	return os.MkdirAll(p.RootPath, 0o700)
}
