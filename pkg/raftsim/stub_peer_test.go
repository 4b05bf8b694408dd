package raftsim

import (
	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"
)

// stubPeer is a minimal Peer that records its bound IO handle and nothing
// else. It lets step-engine and connectivity tests drive events directly
// through IOBackend without needing a real consensus implementation.
type stubPeer struct {
	io          IO
	id          raft.ServerID
	state       PeerState
	term        uint64
	commitIndex uint64
	lastApplied uint64
	log         []Entry
	match       map[raft.ServerID]uint64
}

func newStubPeer(raft.FSM) Peer { return &stubPeer{match: make(map[raft.ServerID]uint64)} }

func (p *stubPeer) Init(io IO, logger zerolog.Logger, id raft.ServerID, address raft.ServerAddress) error {
	p.io = io
	p.id = id
	return nil
}

func (p *stubPeer) Bootstrap(cfg Configuration) error { return nil }
func (p *stubPeer) Start() error                      { return nil }
func (p *stubPeer) Stop() error                       { return nil }

func (p *stubPeer) State() PeerState        { return p.state }
func (p *stubPeer) CurrentTerm() uint64     { return p.term }
func (p *stubPeer) VotedFor() raft.ServerID { return "" }
func (p *stubPeer) CommitIndex() uint64     { return p.commitIndex }
func (p *stubPeer) LastApplied() uint64     { return p.lastApplied }
func (p *stubPeer) LogView() []Entry        { return p.log }

func (p *stubPeer) MatchIndex(id raft.ServerID) (uint64, bool) {
	m, ok := p.match[id]
	return m, ok
}

func (p *stubPeer) OnTick()                               {}
func (p *stubPeer) OnRecv(from raft.ServerID, msg Message) {}
