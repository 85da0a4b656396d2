package pin

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/consts"
)

// ErrCorruptLock indicates that a lock file could not be decoded or names an
// invalid root hash.
var ErrCorruptLock = errors.New("corrupt lock file")

// LockData is the persisted pin for one migration: a single root tree hash
// naming the entire pinned component snapshot. It is immutable once written
// but may be replaced wholesale by re-pinning.
type LockData struct {
	Pin string `toml:"pin"`
}

// WriteLockFile writes a lock file recording pin as the root hash at path,
// replacing any previous lock.
func WriteLockFile(path, pin string) error {
	data, err := toml.Marshal(LockData{Pin: pin})
	if err != nil {
		return errors.Wrap(err, "failed to encode lock file")
	}

	if err := os.WriteFile(path, data, consts.ModeFile); err != nil {
		return errors.Wrapf(err, "failed to write lock file %s", path)
	}

	return nil
}

// ReadLockFile loads and validates the lock file at path. It fails with
// ErrCorruptLock when the file cannot be decoded or the recorded pin is not
// a well-formed hash.
func ReadLockFile(path string) (*LockData, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read lock file %s", path)
	}

	var lock LockData
	if err := toml.Unmarshal(content, &lock); err != nil {
		return nil, errors.Wrapf(ErrCorruptLock, "%s: %v", path, err)
	}

	if len(lock.Pin) != HashHexLen || strings.Trim(lock.Pin, "0123456789abcdef") != "" {
		return nil, errors.Wrapf(ErrCorruptLock, "%s: invalid pin %q", path, lock.Pin)
	}

	return &lock, nil
}
