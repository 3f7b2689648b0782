package engine

import (
	"io"

	"github.com/NaokiLH/kvs/pkg/fs"
)

// posFile wraps an [fs.File] with a shadow offset updated on every
// read/write/seek, the Go analogue of the original's BufReaderWithPos /
// BufWriterWithPos (spec.md §4.B). Buffering is left to the OS page cache
// and to [io.Writer] batching at call sites; the original's BufReader/
// BufWriter exist mainly to amortize syscalls, which matters less here
// since records are small and writes are flushed (Sync'd) on every
// append per spec.md §4.B's flush semantics.
type posFile struct {
	f   fs.File
	pos uint64
}

// newPosFile wraps f, taking f's current offset as the initial shadow
// offset (matching the original's `inner.seek(SeekFrom::Current(0))`).
func newPosFile(f fs.File) (*posFile, error) {
	cur, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, wrapIO("seek current", err)
	}

	return &posFile{f: f, pos: uint64(cur)}, nil
}

// Pos returns the current shadow offset.
func (p *posFile) Pos() uint64 { return p.pos }

func (p *posFile) Read(buf []byte) (int, error) {
	n, err := p.f.Read(buf)
	p.pos += uint64(n)

	return n, err
}

func (p *posFile) Write(buf []byte) (int, error) {
	n, err := p.f.Write(buf)
	p.pos += uint64(n)

	return n, err
}

// Seek updates both the underlying file and the shadow offset.
func (p *posFile) Seek(offset int64, whence int) (int64, error) {
	newPos, err := p.f.Seek(offset, whence)
	if err != nil {
		return newPos, err
	}

	p.pos = uint64(newPos)

	return newPos, nil
}

// Flush commits the just-written record to disk. spec.md §4.B requires
// every append to be followed by a flush before acknowledging.
func (p *posFile) Flush() error {
	return p.f.Sync()
}

func (p *posFile) Close() error {
	return p.f.Close()
}

// boundedReader limits reads to exactly length bytes starting at the
// current position of p, used by [Reader.ReadAt] to hand a caller a
// reader that can't run past one record's span (spec.md §4.E step 3).
func boundedReader(p *posFile, length uint64) io.Reader {
	return io.LimitReader(p, int64(length))
}
