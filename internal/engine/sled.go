package engine

import (
	"fmt"
	"path/filepath"
	"sync"

	bolt "github.com/boltdb/bolt"

	"github.com/NaokiLH/kvs/pkg/fs"
)

// sledBucket is the single bucket Sled stores all keys in.
var sledBucket = []byte("kvs")

// Sled is the alternative engine named in spec.md §1/§6: a thin
// collaborator behind the same [Engine] interface, backed by a B+Tree
// file store rather than the append-only log [KvStore] implements.
// It does no compaction or generation management — bolt owns that.
//
// Unlike [KvStore], a Sled has no Clone: bolt.DB is already safe for
// concurrent use by multiple goroutines, so every worker pool slot shares
// the same instance. closeOnce keeps that sharing safe when the server's
// free list and its own startup code both call Close.
type Sled struct {
	db *bolt.DB

	closeOnce sync.Once
	closeErr  error
}

// OpenSled opens (creating if necessary) a sled-backed store rooted at
// dir/sled.db, validating the "engine" marker file the same way [Open]
// does for kvs.
func OpenSled(dir string) (*Sled, error) {
	fsys := fs.NewReal()

	if err := fsys.MkdirAll(dir, 0o750); err != nil {
		return nil, wrapIO("open sled: create directory", err)
	}

	if err := ensureEngineMarker(fsys, dir, "sled"); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "sled.db")

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, wrapIO("open sled: open database file", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sledBucket)
		return err
	}); err != nil {
		_ = db.Close()

		return nil, wrapIO("open sled: create bucket", err)
	}

	return &Sled{db: db}, nil
}

// Set implements [Engine].
func (s *Sled) Set(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sledBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return wrapIO("sled: set", err)
	}

	return nil
}

// Get implements [Engine].
func (s *Sled) Get(key string) (string, bool, error) {
	var (
		value []byte
		found bool
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sledBucket).Get([]byte(key))
		if v != nil {
			found = true
			value = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return "", false, wrapIO("sled: get", err)
	}

	if !found {
		return "", false, nil
	}

	return string(value), true, nil
}

// Remove implements [Engine]. It returns an error satisfying
// errors.Is(err, ErrKeyNotFound) if key does not exist, matching
// [KvStore.Remove].
func (s *Sled) Remove(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sledBucket)

		if b.Get([]byte(key)) == nil {
			return &Error{Kind: KindKeyNotFound, Err: fmt.Errorf("remove %q: %w", key, ErrKeyNotFound)}
		}

		return b.Delete([]byte(key))
	})
	if err != nil {
		return err
	}

	return nil
}

// Close implements [Engine]. It is safe to call from multiple owners of
// the same Sled; only the first call actually closes the database.
func (s *Sled) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})

	return s.closeErr
}

var _ Engine = (*Sled)(nil)
