// Package cas implements the content-addressable blob store: puts are
// atomic (temp file + fsync + rename), re-puts of an existing hash are
// idempotent dedup, and reads are plain file opens keyed by the blob's
// SHA-256 hex digest.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"forge.evalgo.org/bldrerr"
)

const gitignoreContents = "*\n"

// Store is a filesystem-backed content-addressable blob store rooted at a
// directory the caller owns (typically "<workspace>/.builder-cache/cas");
// blobs are sharded under its "blobs" subdirectory.
type Store struct {
	root     string
	refcount map[string]*int64
}

// Open creates (if needed) root and its .gitignore and returns a Store
// rooted there.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindSystem, err, "creating CAS root")
	}
	gitignore := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		if err := os.WriteFile(gitignore, []byte(gitignoreContents), 0o644); err != nil {
			return nil, bldrerr.Wrap(bldrerr.KindSystem, err, "writing CAS .gitignore")
		}
	}
	return &Store{root: root, refcount: make(map[string]*int64)}, nil
}

// Hash returns the content hash used to address b, without storing it.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (s *Store) path(hash string) string {
	if len(hash) < 2 {
		return filepath.Join(s.root, "blobs", "_short", hash)
	}
	return filepath.Join(s.root, "blobs", hash[:2], hash[2:])
}

// Put stores b and returns its content hash. Re-putting a blob with a hash
// that is already present is a no-op in storage size: Put returns early
// without writing a temp file, and only the logical refcount is incremented.
func (s *Store) Put(b []byte) (string, error) {
	hash := Hash(b)
	dest := s.path(hash)

	if s.Has(hash) {
		s.bumpRefcount(hash)
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", bldrerr.Wrap(bldrerr.KindSystem, err, "creating CAS shard dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return "", bldrerr.Wrap(bldrerr.KindSystem, err, "creating CAS temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return "", bldrerr.Wrap(bldrerr.KindSystem, err, "writing CAS temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", bldrerr.Wrap(bldrerr.KindSystem, err, "fsyncing CAS temp file")
	}
	if err := tmp.Close(); err != nil {
		return "", bldrerr.Wrap(bldrerr.KindSystem, err, "closing CAS temp file")
	}

	if err := os.Rename(tmpName, dest); err != nil {
		if s.Has(hash) {
			// Lost a race with a concurrent Put of the same blob: dedup.
			s.bumpRefcount(hash)
			return hash, nil
		}
		return "", bldrerr.Wrap(bldrerr.KindSystem, err, "renaming CAS blob into place")
	}

	s.bumpRefcount(hash)
	return hash, nil
}

func (s *Store) bumpRefcount(hash string) {
	ref, ok := s.refcount[hash]
	if !ok {
		var n int64
		ref = &n
		s.refcount[hash] = ref
	}
	atomic.AddInt64(ref, 1)
}

// Refcount returns the logical refcount recorded for hash in this Store's
// lifetime (not persisted; the real liveness source of truth is the cache's
// referencing entries, which Store.GC takes as its live set).
func (s *Store) Refcount(hash string) int64 {
	ref, ok := s.refcount[hash]
	if !ok {
		return 0
	}
	return atomic.LoadInt64(ref)
}

// Has reports whether hash is present in the store.
func (s *Store) Has(hash string) bool {
	_, err := os.Stat(s.path(hash))
	return err == nil
}

// ErrNotFound is returned by Get when hash is not present.
var ErrNotFound = bldrerr.New(bldrerr.KindSystem, "blob not found").WithRecoverable(false)

// Get retrieves the blob stored under hash.
func (s *Store) Get(hash string) ([]byte, error) {
	f, err := os.Open(s.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, bldrerr.Wrap(bldrerr.KindSystem, err, "opening CAS blob")
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindSystem, err, "reading CAS blob")
	}
	return b, nil
}

// Delete removes hash from the store. Used only by GC, never by normal
// read/write paths.
func (s *Store) Delete(hash string) error {
	err := os.Remove(s.path(hash))
	if err != nil && !os.IsNotExist(err) {
		return bldrerr.Wrap(bldrerr.KindSystem, err, "deleting CAS blob")
	}
	delete(s.refcount, hash)
	return nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}
