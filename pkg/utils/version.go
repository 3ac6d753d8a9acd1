// Package utils holds small helpers shared across ctxmem packages.
package utils

import "fmt"

// Build metadata, set with -ldflags "-X github.com/papercomputeco/ctxmem/pkg/utils.Version=...".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// BuildInfo is the build metadata in one value.
type BuildInfo struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	Buildtime string `json:"buildtime"`
}

// Build returns the current build metadata.
func Build() BuildInfo {
	return BuildInfo{Version: Version, Sha: Sha, Buildtime: Buildtime}
}

// String renders "version (sha, built buildtime)".
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s, built %s)", b.Version, b.Sha, b.Buildtime)
}
