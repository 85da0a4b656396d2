package pin

import (
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Entry kinds for tree objects.
const (
	// BlobEntry marks a tree entry whose hash addresses raw file bytes.
	BlobEntry EntryKind = "blob"

	// TreeEntry marks a tree entry whose hash addresses another tree object.
	TreeEntry EntryKind = "tree"
)

// ErrCorruptTree indicates that a stored object could not be decoded as a
// tree. Callers can test for it with errors.Is.
var ErrCorruptTree = errors.New("corrupt tree object")

type (
	// EntryKind discriminates blob entries from subtree entries.
	EntryKind string

	// Entry is one child of a tree: a named reference to a blob or subtree.
	Entry struct {
		Kind EntryKind `toml:"kind"`
		Hash string    `toml:"hash"`
		Name string    `toml:"name"`
	}

	// Tree is an ordered directory listing. Entries are kept sorted by name
	// (ascending, bytewise) because the serialized form is hashed: any
	// non-deterministic ordering would change the tree's content address and
	// break snapshot reproducibility.
	Tree struct {
		Entries []Entry `toml:"entry"`
	}
)

// Add appends an entry to the tree. Call Sort before encoding.
func (t *Tree) Add(kind EntryKind, hash, name string) {
	t.Entries = append(t.Entries, Entry{Kind: kind, Hash: hash, Name: name})
}

// Sort orders entries by name, ascending bytewise.
func (t *Tree) Sort() {
	sort.Slice(t.Entries, func(i, j int) bool {
		return t.Entries[i].Name < t.Entries[j].Name
	})
}

// Encode serializes the tree to its canonical stored representation, a TOML
// document of [[entry]] records in entry order.
func (t *Tree) Encode() ([]byte, error) {
	data, err := toml.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tree")
	}
	return data, nil
}

// DecodeTree parses a stored tree object. It fails with ErrCorruptTree when
// the bytes are not a valid tree document.
func DecodeTree(data []byte) (*Tree, error) {
	var tree Tree
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, errors.Wrapf(ErrCorruptTree, "%v", err)
	}

	for _, entry := range tree.Entries {
		if entry.Kind != BlobEntry && entry.Kind != TreeEntry {
			return nil, errors.Wrapf(ErrCorruptTree, "unknown entry kind %q for %s", entry.Kind, entry.Name)
		}
		if len(entry.Hash) != HashHexLen {
			return nil, errors.Wrapf(ErrCorruptTree, "malformed hash %q for %s", entry.Hash, entry.Name)
		}
	}

	return &tree, nil
}
