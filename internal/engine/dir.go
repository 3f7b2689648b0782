package engine

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/NaokiLH/kvs/pkg/fs"
)

// logFileName returns the "<gen>.log" basename for a generation, matching
// spec.md §3's "<dir>/<g>.log" layout.
func logFileName(gen uint64) string {
	return strconv.FormatUint(gen, 10) + ".log"
}

func logPath(dir string, gen uint64) string {
	return filepath.Join(dir, logFileName(gen))
}

// listGenerations scans dir for "<u64>.log" entries and returns the
// ascending-sorted list of generations (spec.md §4.C). Entries that don't
// parse as a non-negative integer are silently ignored, not errors.
func listGenerations(fsys fs.FS, dir string) ([]uint64, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, wrapIO("read log directory", err)
	}

	gens := make([]uint64, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}

		numPart := strings.TrimSuffix(name, ".log")

		gen, err := strconv.ParseUint(numPart, 10, 64)
		if err != nil {
			continue
		}

		gens = append(gens, gen)
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })

	return gens, nil
}

// openLogReader opens the log file for gen for reading.
func openLogReader(fsys fs.FS, dir string, gen uint64) (*posFile, error) {
	f, err := fsys.Open(logPath(dir, gen))
	if err != nil {
		return nil, wrapIO("open log file", err)
	}

	return newPosFile(f)
}

// createLogWriter creates (or reopens) gen's log file in append mode and
// returns a positioned writer at the end of it, matching the original's
// OpenOptions::new().create(true).write(true).append(true) (spec.md §4.B).
func createLogWriter(fsys fs.FS, dir string, gen uint64) (*posFile, error) {
	f, err := fsys.OpenFile(logPath(dir, gen), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, wrapIO("create log file", err)
	}

	p, err := newPosFile(f)
	if err != nil {
		return nil, err
	}

	// O_APPEND leaves a real file's offset at 0 until the first write, so
	// move the shadow offset to where appends actually land.
	if _, err := p.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()

		return nil, wrapIO("seek to end of log file", err)
	}

	return p, nil
}

// deleteLog removes gen's log file. A missing file is not an error: the
// caller (compaction) may race with a prior partial cleanup.
func deleteLog(fsys fs.FS, dir string, gen uint64) error {
	err := fsys.Remove(logPath(dir, gen))
	if err != nil && !os.IsNotExist(err) {
		return wrapIO("delete log file", err)
	}

	return nil
}
