package pin

import (
	"path"

	"github.com/pkg/errors"
)

// Resolve expands the tree object at rootHash into a flat mapping of
// slash-separated relative paths to blob hashes. The mapping is computed once
// and can be held immutably for the lifetime of a pinned render.
//
// It fails with ErrCorruptTree when a stored object cannot be decoded as a
// tree, and with ErrNotFound when any referenced hash is missing from the
// store.
func Resolve(store *Store, rootHash string) (map[string]string, error) {
	paths := make(map[string]string)
	if err := resolveTree(store, rootHash, "", paths); err != nil {
		return nil, err
	}
	return paths, nil
}

func resolveTree(store *Store, hash, base string, paths map[string]string) error {
	content, err := store.Get(hash)
	if err != nil {
		return errors.Wrapf(err, "failed to load tree %s", hash)
	}

	tree, err := DecodeTree(content)
	if err != nil {
		return errors.Wrapf(err, "tree %s", hash)
	}

	for _, entry := range tree.Entries {
		name := path.Join(base, entry.Name)

		switch entry.Kind {
		case BlobEntry:
			if !store.Exists(entry.Hash) {
				return errors.Wrapf(ErrNotFound, "blob %s for %s", entry.Hash, name)
			}
			paths[name] = entry.Hash
		case TreeEntry:
			if err := resolveTree(store, entry.Hash, name, paths); err != nil {
				return err
			}
		}
	}

	return nil
}
