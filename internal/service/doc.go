// Package service implements the directory reconciliation rules of nethead.
//
// DirectoryService sits between the resource router and the directory. It
// owns the registration and telemetry rules:
//
//   - A hello from an unseen address creates exactly one Host; replays are
//     no-ops. Addresses starting with "::" are rejected.
//   - Telemetry from an address with no Host fails with
//     domain.ErrNotRegistered and relays nothing.
//   - Each reading in a batch is processed on its own: a service that cannot
//     be created skips only that reading, and relay failures are logged
//     without changing the outcome.
//
// # Concurrency
//
// Lookup-then-insert is serialized per key (host address, or host address
// plus neighbor key) so concurrent requests for the same unseen key create a
// single record while unrelated keys proceed in parallel. The relay call is
// made after the key lock is released.
package service
