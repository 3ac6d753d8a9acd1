// Package git names projects after the git repository they live in.
package git

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const lookupTimeout = 5 * time.Second

// RepoName returns the base name of the repository containing dir. Outside
// a repository, or when git is unavailable, it returns the base name of dir
// itself.
func RepoName(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	if top, ok := TopLevel(abs); ok {
		return filepath.Base(top)
	}
	return filepath.Base(abs)
}

// TopLevel returns the working tree root containing dir.
func TopLevel(dir string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", false
	}
	top := strings.TrimSpace(string(out))
	return top, top != ""
}
