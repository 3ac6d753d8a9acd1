package tail

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/papercomputeco/ctxmem/pkg/ingest/codex"
)

// CursorFile is the cursor file name inside the state directory.
const CursorFile = "cursors.json"

// Cursor is the read position of one source file. For opencode-db sources
// Offset holds the last settled row id.
type Cursor struct {
	Offset int64 `json:"offset"`

	// Digest is the content digest of the last whole-file parse.
	Digest string `json:"digest,omitempty"`

	// Codex is the sticky session identity of a codex rollout.
	Codex *codex.Context `json:"codex,omitempty"`
}

// CursorStore persists cursors as a JSON object keyed by source key.
type CursorStore struct {
	path string

	mu      sync.Mutex
	cursors map[string]Cursor
}

// OpenCursorStore loads the cursors at path. A missing file is an empty store.
func OpenCursorStore(path string) (*CursorStore, error) {
	cs := &CursorStore{path: path, cursors: map[string]Cursor{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cursors: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &cs.cursors); err != nil {
			return nil, fmt.Errorf("decoding cursors %s: %w", path, err)
		}
	}
	return cs, nil
}

// Get returns the cursor for key, or the zero cursor.
func (cs *CursorStore) Get(key string) Cursor {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.cursors[key]
}

// Put records c for key and writes the store to disk.
func (cs *CursorStore) Put(key string, c Cursor) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cursors[key] = c
	return cs.flush()
}

// Len returns the number of tracked sources.
func (cs *CursorStore) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.cursors)
}

// flush writes through a temp file and rename so readers never see a
// partial file.
func (cs *CursorStore) flush() error {
	if cs.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(cs.cursors, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cursors: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cs.path), 0o755); err != nil {
		return fmt.Errorf("creating cursor dir: %w", err)
	}

	tmp := cs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing cursors: %w", err)
	}
	if err := os.Rename(tmp, cs.path); err != nil {
		return fmt.Errorf("replacing cursors: %w", err)
	}
	return nil
}
