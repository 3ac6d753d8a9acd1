package tail

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/papercomputeco/ctxmem/pkg/ingest"
)

// Source is one configured ingestion origin. Pattern is a doublestar glob
// and may start with "~/".
type Source struct {
	Kind        ingest.Kind
	Pattern     string
	Project     string
	SessionSeed string
}

// File is a concrete path matched by a Source.
type File struct {
	Source
	Path string
	Key  string
}

// Expand resolves the source pattern into the matching regular files, in
// lexical order.
func (s Source) Expand() ([]File, error) {
	pattern, err := expandHome(s.Pattern)
	if err != nil {
		return nil, err
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", s.Pattern, err)
	}
	slices.Sort(matches)

	files := make([]File, 0, len(matches))
	for _, m := range matches {
		files = append(files, File{Source: s, Path: m, Key: ingest.SourceKey(s.Kind, m)})
	}
	return files, nil
}

// Root is the deepest directory of the pattern that contains no glob
// metacharacters. Watch registers it so new files are noticed.
func (s Source) Root() (string, error) {
	pattern, err := expandHome(s.Pattern)
	if err != nil {
		return "", err
	}

	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
	return filepath.FromSlash(base), nil
}

func expandHome(pattern string) (string, error) {
	if pattern != "~" && !strings.HasPrefix(pattern, "~/") {
		return pattern, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(pattern, "~")), nil
}
