// Package store provides the key-value persistence primitive for courseswap.
//
// The engine treats storage as an opaque map from string keys to byte values
// offering only Get, Set, Contains and Delete. The primitive has no
// versioning and no transactions of its own; all-or-nothing semantics come
// from Txn, a staging overlay that buffers every write of one engine
// operation and hands the complete write-set to the backend in one Apply.
//
// # Backends
//
//   - Store: SQLite-backed, durable. Apply runs in a single SQL transaction
//   - Memory: map-backed, for tests and ephemeral hosts
//   - Cached: read-through cache (patrickmn/go-cache) around any backend
//
// # Key Layout
//
// Logical tables share one key space, each key prefixed by its table:
//
//	meta/owner               ir.AccountID
//	members/<account-hex>    ir.Member
//	courses/<course-hex>     ir.Course
//	proposals/<course-hex>   []ir.SwapProposal
//	tokens/<account-hex>     []ir.RegistrationToken
//
// Values are JSON. Helpers GetJSON and PutJSON encode and decode them.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
