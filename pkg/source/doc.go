// Package source abstracts where SQL components are loaded from during a
// render: the live filesystem, or an immutable pinned snapshot.
//
// The variant set is deliberately closed. Live reads whatever is on disk
// right now; Pinned resolves a lock file's root hash into a fixed
// path-to-content mapping and serves every lookup from the object store.
// The template renderer only ever sees the Source interface, so "build" and
// "build --pinned" differ in nothing but which source is handed to it.
package source
