// Package repository defines the data access interface for the nethead
// host/service directory.
//
// # Directory Interface
//
// Directory indexes Hosts by address and Services by (host address, neighbor
// key). Both indexes are single-result: inserting a second record for an
// existing key fails with ErrDuplicateKey instead of storing a duplicate.
//
// # Implementations
//
// The memory subpackage keeps the directory in maps guarded by a RWMutex and
// is the default for a single bridge process. The sqlite subpackage persists
// the directory with UNIQUE constraints so several processes (or a restart)
// share the same records.
//
// Neither implementation serializes a caller's lookup-then-insert sequence;
// callers that need check-then-create semantics lock per key themselves and
// treat ErrDuplicateKey as "someone else created it first".
package repository
