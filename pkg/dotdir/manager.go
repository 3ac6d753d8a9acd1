// Package dotdir resolves the .ctxmem/ state directory that holds the
// config file, the observation database and the tail cursors.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the state directory name.
const DirName = ".ctxmem"

// Manager resolves the state directory. It is an explicit value rather than
// process-wide state so tests and embedders can point it anywhere.
type Manager struct {
	workingDir func() (string, error)
	homeDir    func() (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithWorkingDir fixes the directory searched for a local .ctxmem/.
func WithWorkingDir(dir string) Option {
	return func(m *Manager) {
		m.workingDir = func() (string, error) { return dir, nil }
	}
}

// WithHomeDir fixes the home directory fallback.
func WithHomeDir(dir string) Option {
	return func(m *Manager) {
		m.homeDir = func() (string, error) { return dir, nil }
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{workingDir: os.Getwd, homeDir: os.UserHomeDir}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Target returns the absolute state directory, creating it if needed.
// Precedence:
//  1. overrideDir, when set
//  2. ./.ctxmem/ when it already exists
//  3. ~/.ctxmem/
func (m *Manager) Target(overrideDir string) (string, error) {
	dir := overrideDir
	if dir == "" {
		local, ok := m.local()
		if ok {
			dir = local
		} else {
			home, err := m.homeDir()
			if err != nil {
				return "", fmt.Errorf("resolving home directory: %w", err)
			}
			dir = filepath.Join(home, DirName)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating state directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// Path joins elem onto the resolved state directory.
func (m *Manager) Path(overrideDir string, elem ...string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}

func (m *Manager) local() (string, bool) {
	cwd, err := m.workingDir()
	if err != nil {
		return "", false
	}
	dir := filepath.Join(cwd, DirName)
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}
