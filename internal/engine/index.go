package engine

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Index is the concurrent key -> [CommandPos] map (spec.md §4.D). Ordering
// is not semantically required by spec.md ("a sorted skip-map or
// equivalent satisfies the iteration contract"), so it is backed by
// [xsync.MapOf], a lock-free-read, sharded concurrent map — the same
// guarantee the original gets from crossbeam_skiplist::SkipMap and that
// the pack's launix-de-memcp/third_party/NonLockingReadMap hand-rolls for
// its own read-mostly workloads, but via a real, separately maintained
// ecosystem package rather than a vendored implementation.
type Index struct {
	m *xsync.MapOf[string, CommandPos]
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{m: xsync.NewMapOf[string, CommandPos]()}
}

// Get performs a lock-free lookup.
func (idx *Index) Get(key string) (CommandPos, bool) {
	return idx.m.Load(key)
}

// Insert overwrites the entry for key, returning the previous entry if
// one existed. Only the writer goroutine calls Insert (spec.md §4.D, §5).
func (idx *Index) Insert(key string, pos CommandPos) (CommandPos, bool) {
	old, ok := idx.m.Load(key)
	idx.m.Store(key, pos)

	return old, ok
}

// Remove deletes the entry for key, returning the previous entry if one
// existed. Only the writer goroutine calls Remove.
func (idx *Index) Remove(key string) (CommandPos, bool) {
	old, ok := idx.m.Load(key)
	if !ok {
		return CommandPos{}, false
	}

	idx.m.Delete(key)

	return old, true
}

// Range iterates all entries in unspecified order, for compaction
// (spec.md §4.D, §4.F step 2). The callback must not call Insert/Remove.
func (idx *Index) Range(f func(key string, pos CommandPos) bool) {
	idx.m.Range(f)
}

// Len returns the number of live entries.
func (idx *Index) Len() int {
	return idx.m.Size()
}
