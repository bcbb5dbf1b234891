// Package localstore is a SQLite-backed document store implementing the
// backend collection, document and query contracts, with push snapshots.
//
// It is a development and test fixture comparable to an emulator: queries
// support collection scans, comparison filters on top-level fields,
// single-field ordering and limits.
//
// # Ordering
//
//   - Every write takes seq = MAX(seq)+1 inside its INSERT, so seq stays
//     monotonic across processes sharing the file. Timestamps are never
//     used for ordering.
//   - Every query ends with the tiebreaker id COLLATE BINARY, so equal
//     sort keys come back in a stable order.
//
// # Listeners
//
// OnSnapshot delivers the current snapshot on registration and a fresh one
// after every committed write that can affect it. Writes committed by other
// processes are picked up by polling PRAGMA data_version. Deliveries for the whole
// store run on one goroutine, in write order. Callbacks must not block and
// must not call back into the store synchronously.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Stored documents are canonical JSON (see internal/canon), so two writes
// of equal data produce identical rows.
package localstore
