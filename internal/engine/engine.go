// Package engine implements the log-structured storage engine: the
// on-disk log format, in-memory index, reader/writer coordination, and
// online compaction described in spec.md §3–§5.
package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/NaokiLH/kvs/pkg/fs"
)

// Engine is the capability every storage backend exposes (spec.md §4.G).
// [KvStore] is the kvs backend this package specifies in detail; [Sled]
// is the thin alternative named in spec.md §1/§6 as an out-of-scope
// collaborator sharing only this interface.
type Engine interface {
	// Set stores value under key, overwriting any existing value.
	Set(key, value string) error

	// Get returns the value for key and true, or ("", false, nil) on a
	// miss. It returns a non-nil error only on an internal consistency
	// or I/O fault.
	Get(key string) (string, bool, error)

	// Remove deletes key. It returns an error satisfying
	// errors.Is(err, ErrKeyNotFound) if key does not exist.
	Remove(key string) error

	// Close releases any resources the engine holds open.
	Close() error
}

// engineMarkerFile is the plain-text file naming which engine initialized
// a directory (spec.md §6).
const engineMarkerFile = "engine"

// ensureEngineMarker validates (or creates) the "engine" marker file for
// dir. If the file exists and names a different engine than want, it
// returns [ErrWrongEngine]. If the file doesn't exist, it is created
// atomically via github.com/natefinch/atomic, matching the teacher's use
// of the same package for durable single-file writes.
func ensureEngineMarker(fsys fs.FS, dir, want string) error {
	path := logMarkerPath(dir)

	exists, err := fsys.Exists(path)
	if err != nil {
		return wrapIO("stat engine marker", err)
	}

	if !exists {
		// atomic.WriteFile durably renames over the target, matching the
		// teacher's use of the same package for single-file writes
		// (lock.go, ticket.go). It operates on the real filesystem, so it
		// is only used when fsys is the production [fs.Real]; fakes used
		// in tests fall back to the plain fs.FS.WriteFile.
		if _, ok := fsys.(*fs.Real); ok {
			if err := atomic.WriteFile(path, strings.NewReader(want)); err != nil {
				return wrapIO("write engine marker", err)
			}

			return nil
		}

		if err := fsys.WriteFile(path, []byte(want), 0o644); err != nil {
			return wrapIO("write engine marker", err)
		}

		return nil
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return wrapIO("read engine marker", err)
	}

	got := string(data)
	if got != want {
		return fmt.Errorf("%w: directory was initialized with %q, requested %q", ErrWrongEngine, got, want)
	}

	return nil
}

func logMarkerPath(dir string) string {
	return filepath.Join(dir, engineMarkerFile)
}
