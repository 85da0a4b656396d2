// Package pin implements the content-addressed object store used to take
// immutable snapshots of component directories.
//
// A snapshot walks a directory tree, storing each file as a blob and each
// directory as a tree object (a serialized, name-sorted listing of its
// children). Every object is addressed by a 128-bit content hash, so the
// store deduplicates by construction and a snapshot of an unmodified tree
// always reproduces the same root hash. That root hash is the "pin": recorded
// in a lock file, it names the exact component state a migration was built
// against, and resolving it reconstructs the full path-to-content mapping
// months later even if the live files have changed.
//
// # Core Components
//
//   - Store: write-once, hash-addressed object storage on disk
//   - Snapshot: directory walker producing a root tree hash
//   - Resolve: expansion of a root hash back into a path-to-hash mapping
//   - LockData: the persisted pin for a single migration
//
// # Usage Example
//
//	store := pin.NewStore(".anchor/objects")
//
//	// Pin the current component state.
//	root, err := pin.Snapshot(store, "db/components")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := pin.WriteLockFile("db/migrations/x/anchor.lock", root); err != nil {
//		log.Fatal(err)
//	}
//
//	// Later: reconstruct the pinned mapping.
//	lock, err := pin.ReadLockFile("db/migrations/x/anchor.lock")
//	if err != nil {
//		log.Fatal(err)
//	}
//	paths, err := pin.Resolve(store, lock.Pin)
//
// The hash is xxh3-128 and is used purely for addressing and deduplication;
// it is not a cryptographic digest and the store makes no tamper-resistance
// claims.
package pin
