package pin

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/consts"
	"github.com/zeebo/xxh3"
)

// HashHexLen is the length of a rendered content hash: a 128-bit digest as
// lowercase hex.
const HashHexLen = 32

// ErrNotFound indicates that no object exists in the store for the requested
// hash. Callers can test for it with errors.Is.
var ErrNotFound = errors.New("object not found")

// HashBytes computes the content hash used for all object addressing. The
// digest is xxh3-128, rendered as a 32 character lowercase hex string. It is
// a pure function of the input bytes: identical content always produces the
// same hash and therefore the same storage path.
//
// The hash is used for deduplication and addressing only. It is not a
// cryptographic digest and provides no tamper resistance.
func HashBytes(content []byte) string {
	sum := xxh3.Hash128(content).Bytes()
	return hex.EncodeToString(sum[:])
}

type (
	// Store is a content-addressed object store backed by a directory tree.
	// Objects are written once under a path derived from their content hash
	// and never modified, so concurrent writers of identical content are
	// harmless: whoever wins the race writes the same bytes.
	//
	// Example usage:
	//
	//	store := pin.NewStore(".anchor/objects")
	//	hash, err := store.Put([]byte("SELECT 1;"))
	//	if err != nil {
	//		log.Fatal(err)
	//	}
	//
	//	content, err := store.Get(hash)
	Store struct {
		root string
	}
)

// NewStore creates a Store rooted at the given directory. The directory is
// created lazily on the first Put.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Put writes content to the store and returns its hash. If an object already
// exists at the derived path the write is skipped, making repeated Puts of
// identical content no-ops after the first. An interrupted write is recovered
// by simply retrying: the same content always lands on the same path.
func (s *Store) Put(content []byte) (string, error) {
	hash := HashBytes(content)
	path := s.ObjectPath(hash)

	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), consts.ModeDir); err != nil {
		return "", errors.Wrapf(err, "failed to create object directory for %s", hash)
	}

	if err := os.WriteFile(path, content, consts.ModeFile); err != nil {
		return "", errors.Wrapf(err, "failed to write object %s", hash)
	}

	return hash, nil
}

// Get returns the raw bytes stored for hash. It fails with ErrNotFound if no
// object exists at the derived path.
func (s *Store) Get(hash string) ([]byte, error) {
	content, err := os.ReadFile(s.ObjectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "hash %s", hash)
		}
		return nil, errors.Wrapf(err, "failed to read object %s", hash)
	}

	return content, nil
}

// Exists reports whether an object is present in the store for hash.
func (s *Store) Exists(hash string) bool {
	_, err := os.Stat(s.ObjectPath(hash))
	return err == nil
}

// ObjectPath returns the storage path for a hash: a two character directory
// prefix followed by the remaining characters as the file name (git-style
// sharding to bound directory fan-out).
func (s *Store) ObjectPath(hash string) string {
	if len(hash) < 3 {
		return filepath.Join(s.root, hash)
	}
	return filepath.Join(s.root, hash[:2], hash[2:])
}
