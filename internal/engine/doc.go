// Package engine implements the registration and swap negotiation engine.
//
// The engine issues, escrows and exchanges course-registration tokens via
// propose / counter / accept. Callers never touch the catalog, ledger or
// proposal lists directly; every interaction is a Command passed to
// Engine.Dispatch.
//
// ARCHITECTURE:
//
// Closed Command Set:
// Each operation is a command struct with one handler. The set is closed
// (commands carry an unexported method), so hosts can only build the
// commands this package defines.
//
// All-or-Nothing Dispatch:
// Dispatch opens a store.Txn over the engine's KV, builds the catalog,
// ledger, directory and proposal book on top of it, and runs the handler.
// The staged write-set is committed in one batch only when the handler
// succeeds. A failed operation leaves no trace in the store: a rejected
// accept keeps its proposal, a rejected counter keeps its token.
//
// Single Writer:
// The engine itself holds no locks and assumes one Dispatch at a time.
// Hosts that accept concurrent requests submit them through a Runner,
// which executes commands one by one in FIFO order on a single goroutine.
//
// Token Lifecycle:
//
//	Active ──propose──▶ Offered ──accept──▶ Consumed
//	Active ──counter──▶ Countered ──accept──▶ Consumed
//	Offered|Countered ──withdraw──▶ Active
//
// A counter-offer that is not accepted when its proposal is accepted is
// forfeited unless the engine was built WithRefundOnAccept(true).
package engine
