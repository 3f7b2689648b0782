package fs

import (
	"errors"
	"os"
	"testing"
)

// TestFake_ReadFile_ReturnsNotExistForMissingPath verifies that ReadFile
// surfaces os.ErrNotExist for paths never written, matching os.ReadFile's
// behavior against a real filesystem.
func TestFake_ReadFile_ReturnsNotExistForMissingPath(t *testing.T) {
	fsys := NewFake()

	_, err := fsys.ReadFile("/data/1.log")

	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want os.ErrNotExist", err)
	}
}

// TestFake_WriteFileThenReadFile_RoundTrips verifies the basic write/read
// contract and that ReadFile returns an independent copy of the data.
func TestFake_WriteFileThenReadFile_RoundTrips(t *testing.T) {
	fsys := NewFake()

	if err := fsys.WriteFile("/data/1.log", []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile err=%v", err)
	}

	got, err := fsys.ReadFile("/data/1.log")
	if err != nil {
		t.Fatalf("ReadFile err=%v", err)
	}

	if string(got) != "hello" {
		t.Fatalf("content=%q, want=%q", got, "hello")
	}

	got[0] = 'X'

	again, err := fsys.ReadFile("/data/1.log")
	if err != nil {
		t.Fatalf("ReadFile err=%v", err)
	}

	if string(again) != "hello" {
		t.Fatalf("mutating a returned slice corrupted stored data: %q", again)
	}
}

// TestFake_OpenFileAppend_WritesPastExistingContent verifies O_APPEND
// semantics, which the log writer relies on for every record it appends.
func TestFake_OpenFileAppend_WritesPastExistingContent(t *testing.T) {
	fsys := NewFake()

	if err := fsys.WriteFile("/data/1.log", []byte("abc"), 0o644); err != nil {
		t.Fatalf("setup WriteFile err=%v", err)
	}

	f, err := fsys.OpenFile("/data/1.log", os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenFile err=%v", err)
	}

	if _, err := f.Write([]byte("def")); err != nil {
		t.Fatalf("Write err=%v", err)
	}

	got, err := fsys.ReadFile("/data/1.log")
	if err != nil {
		t.Fatalf("ReadFile err=%v", err)
	}

	if string(got) != "abcdef" {
		t.Fatalf("content=%q, want=%q", got, "abcdef")
	}
}

// TestFake_OpenFileCreate_FailsWithoutCreateFlagOnMissingPath verifies that
// opening a nonexistent path without O_CREATE fails, matching os.OpenFile.
func TestFake_OpenFileCreate_FailsWithoutCreateFlagOnMissingPath(t *testing.T) {
	fsys := NewFake()

	_, err := fsys.OpenFile("/data/1.log", os.O_RDONLY, 0o644)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want os.ErrNotExist", err)
	}
}

// TestFake_ReadDir_ListsOnlyDirectChildrenSorted verifies ReadDir scopes
// entries to the given directory and returns them in name order, which the
// engine relies on when discovering generation log files at startup.
func TestFake_ReadDir_ListsOnlyDirectChildrenSorted(t *testing.T) {
	fsys := NewFake()

	for _, path := range []string{"/data/2.log", "/data/1.log", "/data/nested/3.log"} {
		if err := fsys.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("setup WriteFile(%s) err=%v", path, err)
		}
	}

	entries, err := fsys.ReadDir("/data")
	if err != nil {
		t.Fatalf("ReadDir err=%v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("entries=%v, want 2 direct children", entries)
	}

	if entries[0].Name() != "1.log" || entries[1].Name() != "2.log" {
		t.Fatalf("entries=[%s %s], want sorted [1.log 2.log]", entries[0].Name(), entries[1].Name())
	}
}

// TestFake_Remove_ThenExistsReturnsFalse verifies Remove deletes the entry
// and Exists reports (false, nil) rather than an error, matching Real.
func TestFake_Remove_ThenExistsReturnsFalse(t *testing.T) {
	fsys := NewFake()

	if err := fsys.WriteFile("/data/1.log", []byte("x"), 0o644); err != nil {
		t.Fatalf("setup WriteFile err=%v", err)
	}

	if err := fsys.Remove("/data/1.log"); err != nil {
		t.Fatalf("Remove err=%v", err)
	}

	exists, err := fsys.Exists("/data/1.log")
	if err != nil {
		t.Fatalf("Exists err=%v", err)
	}

	if exists {
		t.Fatal("exists=true after Remove, want false")
	}
}
