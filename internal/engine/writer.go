package engine

import (
	"fmt"
	"log"

	"github.com/NaokiLH/kvs/pkg/fs"
)

// compactionThreshold is the uncompacted-bytes trigger (spec.md §3: 1 MiB).
const compactionThreshold uint64 = 1024 * 1024

// writerCore is the single-writer append path. It is only ever touched
// while the owning [KvStore]'s writer mutex is held (spec.md §4.F, §5);
// it performs no locking of its own.
type writerCore struct {
	fsys   fs.FS
	dir    string
	index  *Index
	reader *Reader // the writer's private reader, used to copy records during compaction

	writer      *posFile
	currentGen  uint64
	uncompacted uint64

	// compactionThreshold overrides the package default compactionThreshold
	// when non-zero (wired from config.Config.CompactionThresholdBytes).
	compactionThreshold uint64
}

func (w *writerCore) threshold() uint64 {
	if w.compactionThreshold != 0 {
		return w.compactionThreshold
	}

	return compactionThreshold
}

// Set implements spec.md §4.F's set(k, v).
func (w *writerCore) Set(key, value string) error {
	startPos := w.writer.Pos()

	_, err := EncodeRecord(w.writer, Command{Kind: CommandSet, Key: key, Value: value})
	if err != nil {
		return err
	}

	if err := w.writer.Flush(); err != nil {
		return wrapIO("flush after set", err)
	}

	endPos := w.writer.Pos()

	old, hadOld := w.index.Insert(key, NewCommandPos(w.currentGen, startPos, endPos))
	if hadOld {
		w.uncompacted += old.Length
	}

	if w.uncompacted > w.threshold() {
		return w.compact()
	}

	return nil
}

// Remove implements spec.md §4.F's remove(k).
func (w *writerCore) Remove(key string) error {
	_, ok := w.index.Get(key)
	if !ok {
		return &Error{Kind: KindKeyNotFound, Err: fmt.Errorf("remove %q: %w", key, ErrKeyNotFound)}
	}

	startPos := w.writer.Pos()

	_, err := EncodeRecord(w.writer, Command{Kind: CommandRemove, Key: key})
	if err != nil {
		return err
	}

	if err := w.writer.Flush(); err != nil {
		return wrapIO("flush after remove", err)
	}

	endPos := w.writer.Pos()

	old, _ := w.index.Remove(key)
	w.uncompacted += old.Length
	w.uncompacted += endPos - startPos

	if w.uncompacted > w.threshold() {
		return w.compact()
	}

	return nil
}

// compact implements spec.md §4.F's atomic replacement protocol.
func (w *writerCore) compact() error {
	compactionGen := w.currentGen + 1
	newActiveGen := w.currentGen + 2

	compactionWriter, err := createLogWriter(w.fsys, w.dir, compactionGen)
	if err != nil {
		return fmt.Errorf("compact: open compaction file: %w", err)
	}

	newWriter, err := createLogWriter(w.fsys, w.dir, newActiveGen)
	if err != nil {
		_ = compactionWriter.Close()

		return fmt.Errorf("compact: open new active file: %w", err)
	}

	// Step 2: copy every live record into the compaction file and
	// re-point the index, before anything is deleted.
	var copyErr error

	w.index.Range(func(key string, pos CommandPos) bool {
		newStart := compactionWriter.Pos()

		_, err := w.reader.CopyTo(pos, compactionWriter)
		if err != nil {
			copyErr = fmt.Errorf("compact: copy key %q: %w", key, err)

			return false
		}

		w.index.Insert(key, NewCommandPos(compactionGen, newStart, compactionWriter.Pos()))

		return true
	})

	if copyErr != nil {
		_ = compactionWriter.Close()
		_ = newWriter.Close()

		return copyErr
	}

	// Step 3: flush the compaction file.
	if err := compactionWriter.Flush(); err != nil {
		_ = compactionWriter.Close()
		_ = newWriter.Close()

		return fmt.Errorf("compact: flush compaction file: %w", err)
	}

	// From here on, any failure is non-fatal: the index already points at
	// valid data, so we commit to the new generation and merely log
	// problems cleaning up.
	oldWriter := w.writer
	w.currentGen = newActiveGen
	w.writer = newWriter

	// The old active-generation file is unlinked below (it is strictly
	// less than compactionGen); its write handle must be closed here or
	// the fd and the disk space it holds outlive the unlink until process
	// exit. compactionWriter is likewise done being written to — readers
	// reopen the compaction generation through their own handles, so
	// closing this write handle doesn't affect them.
	if err := oldWriter.Close(); err != nil {
		log.Printf("kvs: compact: close old active log: %v", err)
	}

	if err := compactionWriter.Close(); err != nil {
		log.Printf("kvs: compact: close compaction writer: %v", err)
	}

	// Step 4: publish the safepoint. Sequentially-consistent store pairs
	// with the index inserts above, which happened-before this point in
	// program order on this (the only writer) goroutine.
	w.reader.setSafepoint(compactionGen)

	// Step 5: sweep the writer's own reader.
	w.reader.closeStaleHandles()

	// Step 6: delete every log file strictly below the new safepoint.
	gens, err := listGenerations(w.fsys, w.dir)
	if err != nil {
		log.Printf("kvs: compact: list generations for cleanup: %v", err)

		w.uncompacted = 0

		return nil
	}

	for _, gen := range gens {
		if gen >= compactionGen {
			continue
		}

		if err := deleteLog(w.fsys, w.dir, gen); err != nil {
			log.Printf("kvs: compact: delete stale log %d: %v", gen, err)
		}
	}

	w.uncompacted = 0

	return nil
}
