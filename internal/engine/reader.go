package engine

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/NaokiLH/kvs/pkg/fs"
)

// readerShared is the state every clone of a [Reader] shares: the
// directory path and the safepoint. Everything else (the open-handle
// cache) is private per clone (spec.md §4.E).
type readerShared struct {
	fsys      fs.FS
	dir       string
	safepoint atomic.Uint64
}

// Reader is a per-owner pool of open log file handles, used by a single
// long-lived goroutine at a time (a worker, or a test) — see
// SPEC_FULL.md's "thread-local reader" resolution. A private mutex guards
// the handle cache map only: concurrent ReadAt calls for the same
// generation on one Reader race on that handle's seek position.
type Reader struct {
	shared *readerShared

	mu    sync.Mutex
	cache map[uint64]*posFile
}

func newReader(fsys fs.FS, dir string) *Reader {
	return &Reader{
		shared: &readerShared{fsys: fsys, dir: dir},
		cache:  make(map[uint64]*posFile),
	}
}

// Clone returns an independent Reader sharing only the directory path and
// safepoint, with its own empty handle cache (spec.md §4.E).
func (r *Reader) Clone() *Reader {
	return &Reader{
		shared: r.shared,
		cache:  make(map[uint64]*posFile),
	}
}

// setSafepoint publishes a new safepoint with sequentially-consistent
// ordering, pairing with the index republication compaction performs
// before calling this (spec.md §5).
func (r *Reader) setSafepoint(gen uint64) {
	r.shared.safepoint.Store(gen)
}

func (r *Reader) safepointValue() uint64 {
	return r.shared.safepoint.Load()
}

// closeStaleHandles drops every cached handle whose generation is below
// the current safepoint (spec.md §4.E step 1).
func (r *Reader) closeStaleHandles() {
	sp := r.safepointValue()

	r.mu.Lock()
	defer r.mu.Unlock()

	for gen, f := range r.cache {
		if gen < sp {
			_ = f.Close()
			delete(r.cache, gen)
		}
	}
}

// ReadAt performs spec.md §4.E's read_at: sweep stale handles, open (or
// reuse) the handle for pos.Gen, seek, bound the read to pos.Length, and
// invoke f with that bounded reader.
func (r *Reader) ReadAt(pos CommandPos, f func(io.Reader) (Command, error)) (Command, error) {
	r.closeStaleHandles()

	r.mu.Lock()

	handle, ok := r.cache[pos.Gen]
	if !ok {
		opened, err := openLogReader(r.shared.fsys, r.shared.dir, pos.Gen)
		if err != nil {
			r.mu.Unlock()

			return Command{}, wrapIO("read_at: missing log file after safepoint update", err)
		}

		r.cache[pos.Gen] = opened
		handle = opened
	}

	r.mu.Unlock()

	// Only the owning goroutine is expected to drive this handle's seek
	// position; a private mutex around the map lookup above is enough to
	// make concurrent sharing of one Reader memory-safe, but concurrent
	// ReadAt calls against the *same generation* on the *same Reader*
	// would race its seek cursor. Callers are expected to give each
	// worker its own Reader clone (spec.md §4.G), which avoids this.
	_, err := handle.Seek(int64(pos.Offset), io.SeekStart)
	if err != nil {
		return Command{}, wrapIO("read_at: seek", err)
	}

	return f(boundedReader(handle, pos.Length))
}

// ReadCommand reads and decodes exactly the record at pos.
func (r *Reader) ReadCommand(pos CommandPos) (Command, error) {
	return r.ReadAt(pos, func(br io.Reader) (Command, error) {
		stream := NewRecordStream(br, pos.Offset)

		cmd, _, _, err := stream.Next()
		if err != nil {
			return Command{}, err
		}

		return cmd, nil
	})
}

// CopyTo copies the raw bytes at pos from this reader's log file into w,
// used by compaction (spec.md §4.F step 2). It returns the number of
// bytes copied.
func (r *Reader) CopyTo(pos CommandPos, w io.Writer) (int64, error) {
	var n int64

	_, err := r.ReadAt(pos, func(br io.Reader) (Command, error) {
		copied, copyErr := io.Copy(w, br)
		n = copied

		if copyErr != nil {
			return Command{}, wrapIO("copy record during compaction", copyErr)
		}

		return Command{}, nil
	})

	return n, err
}

// Close releases every handle this reader currently holds open.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error

	for gen, f := range r.cache {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		delete(r.cache, gen)
	}

	return firstErr
}
