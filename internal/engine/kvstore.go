package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/NaokiLH/kvs/pkg/fs"
)

// KvStore is the default engine: the log-structured store spec.md
// describes in full (§3–§5). It implements [Engine].
//
// A KvStore is cheaply clonable: [KvStore.Clone] shares the directory,
// index, and writer mutex, and produces an independent reader cache
// (spec.md §4.G). Give each long-lived consumer (each worker pool slot)
// its own clone rather than sharing one across goroutines that call Get
// concurrently, so reads never contend on a private reader cache lock.
type KvStore struct {
	dir    string
	fsys   fs.FS
	index  *Index
	reader *Reader // this clone's own reader

	wh *writerHandle // shared by all clones
}

// writerHandle lets every KvStore clone share one writerCore and one
// writer mutex, while closing the active log file exactly once no matter
// how many clones call Close.
type writerHandle struct {
	mu        sync.Mutex
	core      *writerCore
	closeOnce sync.Once
	closeErr  error
}

func (h *writerHandle) closeWriter() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.core.writer.Close()
	})

	return h.closeErr
}

// Options configures [OpenWithOptions].
type Options struct {
	// CompactionThresholdBytes overrides the 1 MiB default uncompacted-
	// bytes trigger for online compaction when non-zero.
	CompactionThresholdBytes uint64
}

// Open opens (creating if necessary) a kvs store rooted at dir, replaying
// every log file in ascending generation order to rebuild the index
// (spec.md §3 "Lifecycle"). It validates or creates the "engine" marker
// file naming this directory as "kvs" (spec.md §6).
func Open(dir string) (*KvStore, error) {
	return OpenWithOptions(dir, Options{})
}

// OpenWithOptions is [Open] with an explicit [Options].
func OpenWithOptions(dir string, opts Options) (*KvStore, error) {
	return openWithFS(fs.NewReal(), dir, opts)
}

// OpenWithFS is [Open] parameterized over the filesystem, for tests.
func OpenWithFS(fsys fs.FS, dir string) (*KvStore, error) {
	return openWithFS(fsys, dir, Options{})
}

// OpenWithFSAndOptions is [OpenWithOptions] parameterized over the
// filesystem, for tests.
func OpenWithFSAndOptions(fsys fs.FS, dir string, opts Options) (*KvStore, error) {
	return openWithFS(fsys, dir, opts)
}

func openWithFS(fsys fs.FS, dir string, opts Options) (*KvStore, error) {
	if err := fsys.MkdirAll(dir, 0o750); err != nil {
		return nil, wrapIO("open: create directory", err)
	}

	if err := ensureEngineMarker(fsys, dir, "kvs"); err != nil {
		return nil, err
	}

	gens, err := listGenerations(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	index := NewIndex()

	var uncompacted uint64

	for _, gen := range gens {
		n, err := loadGeneration(fsys, dir, gen, index)
		if err != nil {
			return nil, fmt.Errorf("open: replay generation %d: %w", gen, err)
		}

		uncompacted += n
	}

	currentGen := uint64(1)
	if len(gens) > 0 {
		currentGen = gens[len(gens)-1] + 1
	}

	writer, err := createLogWriter(fsys, dir, currentGen)
	if err != nil {
		return nil, fmt.Errorf("open: create active log file: %w", err)
	}

	reader := newReader(fsys, dir)

	core := &writerCore{
		fsys:                fsys,
		dir:                 dir,
		index:               index,
		reader:              reader.Clone(),
		writer:              writer,
		currentGen:          currentGen,
		uncompacted:         uncompacted,
		compactionThreshold: opts.CompactionThresholdBytes,
	}

	return &KvStore{
		dir:    dir,
		fsys:   fsys,
		index:  index,
		reader: reader.Clone(),
		wh:     &writerHandle{core: core},
	}, nil
}

// loadGeneration replays gen's records into index, returning the number
// of dead (overwritten or tombstoned) bytes found, matching the
// original's `load` function.
func loadGeneration(fsys fs.FS, dir string, gen uint64, index *Index) (uint64, error) {
	f, err := openLogReader(fsys, dir, gen)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	stream := NewRecordStream(f, 0)

	var uncompacted uint64

	for {
		cmd, start, end, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return 0, fmt.Errorf("replay %d.log: %w", gen, err)
		}

		switch cmd.Kind {
		case CommandSet:
			old, hadOld := index.Insert(cmd.Key, NewCommandPos(gen, start, end))
			if hadOld {
				uncompacted += old.Length
			}
		case CommandRemove:
			old, hadOld := index.Remove(cmd.Key)
			if hadOld {
				uncompacted += old.Length
			}

			uncompacted += end - start
		}
	}

	return uncompacted, nil
}

// Clone returns a KvStore sharing this one's directory, index, and writer
// mutex, with its own private reader cache (spec.md §4.G).
func (s *KvStore) Clone() *KvStore {
	return &KvStore{
		dir:    s.dir,
		fsys:   s.fsys,
		index:  s.index,
		reader: s.reader.Clone(),
		wh:     s.wh,
	}
}

// Set acquires the writer mutex and delegates to the writer core
// (spec.md §4.G).
func (s *KvStore) Set(key, value string) error {
	s.wh.mu.Lock()
	defer s.wh.mu.Unlock()

	return s.wh.core.Set(key, value)
}

// Remove acquires the writer mutex and delegates to the writer core.
func (s *KvStore) Remove(key string) error {
	s.wh.mu.Lock()
	defer s.wh.mu.Unlock()

	return s.wh.core.Remove(key)
}

// Get performs a lock-free index lookup and, on hit, reads through this
// clone's private reader (spec.md §4.G). A miss returns (ok=false).
func (s *KvStore) Get(key string) (string, bool, error) {
	pos, ok := s.index.Get(key)
	if !ok {
		return "", false, nil
	}

	cmd, err := s.reader.ReadCommand(pos)
	if err != nil {
		return "", false, err
	}

	if cmd.Kind != CommandSet {
		return "", false, &Error{
			Kind: KindUnexpectedCommandType,
			Err:  fmt.Errorf("get %q: %w", key, ErrUnexpectedCommandType),
		}
	}

	return cmd.Value, true, nil
}

// Close releases this clone's open file handles and closes the active log
// writer that all clones share. The writer is closed exactly once, by the
// first Close call on any clone; later Close calls only drop their own
// reader cache. Set and Remove through any clone after that first Close
// append through the closed writer.
func (s *KvStore) Close() error {
	readerErr := s.reader.Close()
	writerErr := s.wh.closeWriter()

	if writerErr != nil {
		return writerErr
	}

	return readerErr
}

var _ Engine = (*KvStore)(nil)
