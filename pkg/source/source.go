package source

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/pin"
)

// ErrUninitialized indicates that a pinned source was used before a pin
// mapping was computed for it.
var ErrUninitialized = errors.New("pinned source has no pin mapping")

type (
	// Source resolves component names to content. Load reports ok=false for a
	// component that does not exist, reserving errors for genuine failures so
	// that a missing fragment surfaces as a template-level error rather than
	// a storage one.
	//
	// Implementations must be safe for concurrent Loads within a single
	// render.
	Source interface {
		Load(name string) (content []byte, ok bool, err error)
	}

	// Live reads components from the current filesystem state under a base
	// directory.
	Live struct {
		base string
	}

	// Pinned reads components from an immutable snapshot: names are looked up
	// in a resolved pin mapping and content is fetched from the object store.
	Pinned struct {
		store *pin.Store
		paths map[string]string
	}
)

// NewLive creates a Source reading live files relative to base.
func NewLive(base string) *Live {
	return &Live{base: base}
}

// Load reads the named component from disk. A missing file yields ok=false
// with no error.
func (l *Live) Load(name string) ([]byte, bool, error) {
	rel := path.Clean(name)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return nil, false, nil
	}

	content, err := os.ReadFile(filepath.Join(l.base, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "failed to read component %s", name)
	}

	return content, true, nil
}

// NewPinned creates a Source backed by the snapshot rooted at rootHash,
// resolving the full path mapping up front. The mapping is immutable for the
// source's lifetime, which is what makes pinned renders reproducible.
func NewPinned(store *pin.Store, rootHash string) (*Pinned, error) {
	paths, err := pin.Resolve(store, rootHash)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve pin %s", rootHash)
	}

	return &Pinned{store: store, paths: paths}, nil
}

// Load looks the named component up in the pin mapping and fetches its bytes
// from the object store. A name absent from the mapping yields ok=false with
// no error. It fails with ErrUninitialized if the source was constructed
// without a mapping.
func (p *Pinned) Load(name string) ([]byte, bool, error) {
	if p.paths == nil {
		return nil, false, errors.WithStack(ErrUninitialized)
	}

	hash, ok := p.paths[path.Clean(name)]
	if !ok {
		return nil, false, nil
	}

	content, err := p.store.Get(hash)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to load pinned component %s", name)
	}

	return content, true, nil
}
