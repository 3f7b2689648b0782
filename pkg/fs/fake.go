package fs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Fake is an in-memory [FS] used by engine tests that don't need real
// disk I/O. It is not a fault-injection harness — just a plain map-backed
// filesystem — so it is not a substitute for exercising [Real] directly in
// restart/durability tests.
type Fake struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewFake returns an empty in-memory filesystem.
func NewFake() *Fake {
	return &Fake{files: make(map[string][]byte)}
}

func (f *Fake) Open(path string) (File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.files[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	return &fakeFile{fs: f, path: path, buf: bytes.NewReader(cp)}, nil
}

func (f *Fake) OpenFile(path string, flag int, _ os.FileMode) (File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.files[path]
	if !ok {
		if flag&os.O_CREATE == 0 {
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
		}

		f.files[path] = nil
		data = nil
	}

	if flag&os.O_TRUNC != 0 {
		data = nil
		f.files[path] = nil
	}

	ff := &fakeFile{fs: f, path: path, buf: bytes.NewReader(append([]byte(nil), data...))}
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		ff.writable = true
	}

	if flag&os.O_APPEND != 0 {
		ff.appendOnly = true
		ff.pos = int64(len(data))
	}

	return ff, nil
}

func (f *Fake) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.files[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	return append([]byte(nil), data...), nil
}

func (f *Fake) WriteFile(path string, data []byte, _ os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	f.files[path] = cp

	return nil
}

func (f *Fake) ReadDir(dir string) ([]os.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir = filepath.Clean(dir)

	var names []string

	for path := range f.files {
		d, name := filepath.Split(path)
		if filepath.Clean(d) == dir {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	entries := make([]os.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, fakeDirEntry{name: name})
	}

	return entries, nil
}

func (f *Fake) MkdirAll(string, os.FileMode) error { return nil }

func (f *Fake) Stat(path string) (os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.files[path]
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}

	return fakeFileInfo{name: filepath.Base(path), size: int64(len(data))}, nil
}

func (f *Fake) Exists(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.files[path]

	return ok, nil
}

func (f *Fake) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.files[path]; !ok {
		return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
	}

	delete(f.files, path)

	return nil
}

type fakeFile struct {
	fs         *Fake
	path       string
	buf        *bytes.Reader
	pos        int64
	writable   bool
	appendOnly bool
}

func (ff *fakeFile) Read(p []byte) (int, error) {
	_, err := ff.buf.Seek(ff.pos, io.SeekStart)
	if err != nil {
		return 0, err
	}

	n, err := ff.buf.Read(p)
	ff.pos += int64(n)

	return n, err
}

func (ff *fakeFile) Write(p []byte) (int, error) {
	if !ff.writable {
		return 0, fmt.Errorf("write %s: file not opened for writing", ff.path)
	}

	ff.fs.mu.Lock()
	defer ff.fs.mu.Unlock()

	data := ff.fs.files[ff.path]

	writeAt := ff.pos
	if ff.appendOnly {
		writeAt = int64(len(data))
	}

	if need := writeAt + int64(len(p)); int64(len(data)) < need {
		grown := make([]byte, need)
		copy(grown, data)
		data = grown
	}

	copy(data[writeAt:], p)
	ff.fs.files[ff.path] = data
	ff.pos = writeAt + int64(len(p))
	ff.buf = bytes.NewReader(data)

	return len(p), nil
}

func (ff *fakeFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		ff.pos = offset
	case io.SeekCurrent:
		ff.pos += offset
	case io.SeekEnd:
		ff.fs.mu.Lock()
		size := int64(len(ff.fs.files[ff.path]))
		ff.fs.mu.Unlock()
		ff.pos = size + offset
	}

	return ff.pos, nil
}

func (ff *fakeFile) Close() error { return nil }
func (ff *fakeFile) Sync() error  { return nil }

func (ff *fakeFile) Stat() (os.FileInfo, error) {
	ff.fs.mu.Lock()
	defer ff.fs.mu.Unlock()

	return fakeFileInfo{name: filepath.Base(ff.path), size: int64(len(ff.fs.files[ff.path]))}, nil
}

type fakeFileInfo struct {
	name string
	size int64
}

func (i fakeFileInfo) Name() string       { return i.name }
func (i fakeFileInfo) Size() int64        { return i.size }
func (i fakeFileInfo) Mode() os.FileMode  { return 0o644 }
func (i fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (i fakeFileInfo) IsDir() bool        { return false }
func (i fakeFileInfo) Sys() any           { return nil }

type fakeDirEntry struct{ name string }

func (e fakeDirEntry) Name() string { return e.name }
func (e fakeDirEntry) IsDir() bool  { return false }
func (e fakeDirEntry) Type() os.FileMode {
	return 0
}
func (e fakeDirEntry) Info() (os.FileInfo, error) {
	return fakeFileInfo{name: e.name}, nil
}

var _ FS = (*Fake)(nil)
