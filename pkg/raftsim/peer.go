package raftsim

import (
	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"
)

// AppendCallback reports the outcome of a submit_append request.
type AppendCallback func(err error)

// SendCallback reports that a send's local buffer has been released; it
// never reports a delivery outcome, only that the write itself completed.
type SendCallback func(err error)

// RecvCallback is invoked by the step engine when a transit entry is
// delivered to the registering server.
type RecvCallback func(from raft.ServerID, msg Message)

// TickCallback fires when a server's tick timer expires.
type TickCallback func()

// IO is the capability interface a Peer consumes from its I/O backend (§4.C
// / §6). Implementations are provided exclusively by *IOBackend; nothing
// outside the fixture may implement it.
type IO interface {
	SubmitAppend(entries []Entry, cb AppendCallback)
	SubmitSend(dest raft.ServerID, msg Message, cb SendCallback) error
	RegisterRecvCB(cb RecvCallback)
	Tick(cb TickCallback, periodMS uint64)

	PersistTerm(term uint64)
	PersistVote(vote raft.ServerID)
	PersistSnapshot(s *Snapshot)
	PersistEntries(entries []Entry)

	CurrentTerm() uint64
	VotedFor() raft.ServerID
	LogEntries() []Entry
	LatestSnapshot() *Snapshot

	Time() uint64
	NSend(t MessageType) uint64
	NRecv(t MessageType) uint64
}

// Peer is the capability interface the core consumes from a Raft instance
// (§6). The reference implementation lives in internal/fakeraft; any
// implementation bound to a Fixture must satisfy it.
type Peer interface {
	Init(io IO, logger zerolog.Logger, id raft.ServerID, address raft.ServerAddress) error
	Bootstrap(cfg Configuration) error
	Start() error
	Stop() error

	State() PeerState
	CurrentTerm() uint64
	VotedFor() raft.ServerID
	CommitIndex() uint64
	LastApplied() uint64
	LogView() []Entry

	// MatchIndex reports the leader's replication progress against peer id.
	// Only meaningful when State() == StateLeader; the second return value
	// is false for any peer the leader has no progress record for. This
	// extends the minimal consumed-interface summary in §6 to pin down the
	// "stable leader acknowledgement" criterion from §9's open question 3.
	MatchIndex(id raft.ServerID) (uint64, bool)

	OnTick()
	OnRecv(from raft.ServerID, msg Message)
}

// PeerFactory constructs a fresh Peer bound to fsm for one server. The
// harness is implementation-agnostic about Raft; callers of Fixture.Init
// supply the factory (internal/fakeraft.New is the one this repo ships).
type PeerFactory func(fsm raft.FSM) Peer
