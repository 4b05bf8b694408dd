// Package raftsim is a deterministic, in-memory discrete-event harness for
// driving a Raft cluster through a shared virtual clock. A Fixture owns N
// servers, each pairing a Peer (the consensus participant) with an
// IOBackend (its in-memory disk, network, and tick timer); a single call
// to Step advances time to the next scheduled event anywhere in the
// cluster and dispatches exactly one callback, under a total ordering
// that makes two runs with identical inputs produce identical event
// sequences.
//
// The package does not implement Raft itself — internal/fakeraft is the
// reference Peer this repository ships for its own tests and demo — it
// implements the clock, the queues, the step engine's event selection,
// and the cluster-wide safety checks (Election Safety, Leader Append-Only)
// that every Peer implementation is held to.
package raftsim
