package pin

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrNotADirectory indicates that Snapshot was invoked on a path that is not
// a directory.
var ErrNotADirectory = errors.New("not a directory")

// Snapshot walks dir recursively and stores its full content in store,
// returning the hash of the root tree object. Files become blobs; directories
// become trees whose serialized entry lists reference their children. Entries
// are visited in sorted name order, so snapshotting a byte-identical tree
// always yields the same root hash.
//
// Symlinks are not followed. Read failures propagate without cleanup:
// already-written objects are content-addressed and inert, so leaving them
// behind is harmless.
//
// Example usage:
//
//	store := pin.NewStore(".anchor/objects")
//	root, err := pin.Snapshot(store, "db/components")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("pinned:", root)
func Snapshot(store *Store, dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to stat %s", dir)
	}
	if !info.IsDir() {
		return "", errors.Wrapf(ErrNotADirectory, "%s", dir)
	}

	return snapshotDir(store, dir)
}

func snapshotDir(store *Store, dir string) (string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read directory %s", dir)
	}

	// os.ReadDir returns entries sorted by filename, which is exactly the
	// ordering the tree serialization requires.
	var tree Tree
	for _, dirent := range dirents {
		path := filepath.Join(dir, dirent.Name())

		switch {
		case dirent.Type()&os.ModeSymlink != 0:
			// Never follow symlinks; a link cycle would make the walk
			// unbounded.
			continue
		case dirent.IsDir():
			hash, err := snapshotDir(store, path)
			if err != nil {
				return "", err
			}
			tree.Add(TreeEntry, hash, dirent.Name())
		case dirent.Type().IsRegular():
			content, err := os.ReadFile(path)
			if err != nil {
				return "", errors.Wrapf(err, "failed to read file %s", path)
			}

			hash, err := store.Put(content)
			if err != nil {
				return "", err
			}
			tree.Add(BlobEntry, hash, dirent.Name())
		}
	}

	tree.Sort()
	encoded, err := tree.Encode()
	if err != nil {
		return "", err
	}

	return store.Put(encoded)
}
