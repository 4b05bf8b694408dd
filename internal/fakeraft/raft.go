// Package fakeraft is a compact reference Raft peer implementing
// raftsim.Peer. It exists so the harness has something to drive in its own
// tests and demo: tick-driven election timeouts and heartbeats,
// RequestVote/AppendEntries exchanged through the fixture's in-memory I/O,
// and committed entries applied to a user-supplied raft.FSM. It skips
// snapshot installation, log compaction, and pre-vote; those are real-Raft
// concerns out of scope for a harness that only needs to drive elections
// and replicate committed entries.
package fakeraft

import (
	"strconv"

	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"

	"github.com/cuemby/raftsim/pkg/raftsim"
)

const (
	heartbeatPeriodMS = 50
	leaseWindowMS     = 3 * heartbeatPeriodMS
)

// Raft is the reference peer. It is driven exclusively through the Peer
// interface's OnTick/OnRecv and the lifecycle methods, plus Propose, which
// tests and the demo call between steps on the same goroutine. It needs no
// internal locking: the harness guarantees a single caller at a time (§5,
// non-goal: real concurrency).
type Raft struct {
	io     raftsim.IO
	logger zerolog.Logger
	id     raft.ServerID
	addr   raft.ServerAddress
	index  int

	fsm raft.FSM

	state    raftsim.PeerState
	term     uint64
	votedFor raft.ServerID

	config      raftsim.Configuration
	log         []raftsim.Entry
	commitIndex uint64
	lastApplied uint64

	electionTimeoutMS uint64

	votesReceived map[raft.ServerID]bool

	nextIndex   map[raft.ServerID]uint64
	matchIndex  map[raft.ServerID]uint64
	lastAckTime map[raft.ServerID]uint64
}

// New constructs a Raft bound to fsm, suitable as a raftsim.PeerFactory.
func New(fsm raft.FSM) raftsim.Peer {
	return &Raft{fsm: fsm, state: raftsim.StateFollower}
}

func (r *Raft) Init(io raftsim.IO, logger zerolog.Logger, id raft.ServerID, address raft.ServerAddress) error {
	r.io = io
	r.logger = logger
	r.id = id
	r.addr = address
	r.state = raftsim.StateFollower

	idx, err := strconv.Atoi(string(id))
	if err != nil {
		idx = 1
	}
	r.index = idx - 1
	r.electionTimeoutMS = 1000 + uint64(r.index)*100

	io.RegisterRecvCB(r.OnRecv)
	return nil
}

func (r *Raft) Bootstrap(cfg raftsim.Configuration) error {
	r.config = cfg
	r.log = []raftsim.Entry{{Term: 0, Type: raftsim.EntryConfiguration}}
	r.commitIndex = 1
	r.lastApplied = 1
	r.io.PersistEntries(r.log)
	r.io.PersistTerm(0)
	return nil
}

func (r *Raft) Start() error {
	r.io.Tick(r.OnTick, r.electionTimeoutMS)
	return nil
}

func (r *Raft) Stop() error {
	return nil
}

func (r *Raft) State() raftsim.PeerState   { return r.state }
func (r *Raft) CurrentTerm() uint64        { return r.term }
func (r *Raft) VotedFor() raft.ServerID    { return r.votedFor }
func (r *Raft) CommitIndex() uint64        { return r.commitIndex }
func (r *Raft) LastApplied() uint64        { return r.lastApplied }

func (r *Raft) LogView() []raftsim.Entry {
	out := make([]raftsim.Entry, len(r.log))
	copy(out, r.log)
	return out
}

func (r *Raft) MatchIndex(id raft.ServerID) (uint64, bool) {
	if r.state != raftsim.StateLeader {
		return 0, false
	}
	v, ok := r.matchIndex[id]
	return v, ok
}

// OnTick fires on election timeout (follower/candidate) or on the
// heartbeat cadence (leader).
func (r *Raft) OnTick() {
	if r.state == raftsim.StateLeader {
		r.onLeaderTick()
		return
	}
	r.becomeCandidate()
}

func (r *Raft) OnRecv(from raft.ServerID, msg raftsim.Message) {
	if msg.Term > r.term {
		r.stepDown(msg.Term)
	}

	switch msg.Type {
	case raftsim.MsgRequestVote:
		r.handleRequestVote(from, msg)
	case raftsim.MsgRequestVoteReply:
		r.handleRequestVoteReply(from, msg)
	case raftsim.MsgAppendEntries:
		r.handleAppendEntries(from, msg)
	case raftsim.MsgAppendEntriesReply:
		r.handleAppendEntriesReply(from, msg)
	}
}

func (r *Raft) lastLogIndex() uint64 { return uint64(len(r.log)) }

func (r *Raft) lastLogTerm() uint64 {
	if len(r.log) == 0 {
		return 0
	}
	return r.log[len(r.log)-1].Term
}

func (r *Raft) stepDown(term uint64) {
	wasLeader := r.state == raftsim.StateLeader
	r.state = raftsim.StateFollower
	r.term = term
	r.votedFor = ""
	r.io.PersistTerm(term)
	r.io.PersistVote("")
	if wasLeader {
		r.logger.Info().Uint64("term", term).Msg("leader stepping down")
		r.io.Tick(r.OnTick, r.electionTimeoutMS)
	}
}

func (r *Raft) becomeCandidate() {
	r.state = raftsim.StateCandidate
	r.term++
	r.votedFor = r.id
	r.io.PersistTerm(r.term)
	r.io.PersistVote(r.id)
	r.votesReceived = map[raft.ServerID]bool{r.id: true}

	r.logger.Info().Uint64("term", r.term).Msg("starting election")

	for _, srv := range r.config.Servers {
		if srv.ID == r.id || !srv.Voting {
			continue
		}
		msg := raftsim.Message{
			Type:         raftsim.MsgRequestVote,
			Term:         r.term,
			LastLogIndex: r.lastLogIndex(),
			LastLogTerm:  r.lastLogTerm(),
		}
		dest := srv.ID
		_ = r.io.SubmitSend(dest, msg, nil)
	}

	r.io.Tick(r.OnTick, r.electionTimeoutMS)

	// A lone voter already holds a majority with its own vote.
	if len(r.votesReceived) >= r.config.VotingCount()/2+1 {
		r.becomeLeader()
	}
}

func (r *Raft) becomeLeader() {
	r.state = raftsim.StateLeader
	r.nextIndex = make(map[raft.ServerID]uint64)
	r.matchIndex = make(map[raft.ServerID]uint64)
	r.lastAckTime = make(map[raft.ServerID]uint64)

	now := r.io.Time()
	for _, srv := range r.config.Servers {
		if srv.ID == r.id {
			continue
		}
		r.nextIndex[srv.ID] = r.lastLogIndex() + 1
		r.matchIndex[srv.ID] = 0
		r.lastAckTime[srv.ID] = now
	}

	r.logger.Info().Uint64("term", r.term).Msg("became leader")

	r.sendHeartbeats()
	r.io.Tick(r.OnTick, heartbeatPeriodMS)
}

func (r *Raft) handleRequestVote(from raft.ServerID, msg raftsim.Message) {
	granted := false
	logOK := msg.LastLogTerm > r.lastLogTerm() ||
		(msg.LastLogTerm == r.lastLogTerm() && msg.LastLogIndex >= r.lastLogIndex())

	if msg.Term >= r.term && (r.votedFor == "" || r.votedFor == from) && logOK {
		granted = true
		r.votedFor = from
		r.io.PersistVote(from)
		r.io.Tick(r.OnTick, r.electionTimeoutMS)
	}

	reply := raftsim.Message{
		Type:        raftsim.MsgRequestVoteReply,
		Term:        r.term,
		VoteGranted: granted,
	}
	_ = r.io.SubmitSend(from, reply, nil)
}

func (r *Raft) handleRequestVoteReply(from raft.ServerID, msg raftsim.Message) {
	if r.state != raftsim.StateCandidate || msg.Term != r.term || !msg.VoteGranted {
		return
	}
	r.votesReceived[from] = true
	if len(r.votesReceived) >= r.config.VotingCount()/2+1 {
		r.becomeLeader()
	}
}

func (r *Raft) handleAppendEntries(from raft.ServerID, msg raftsim.Message) {
	if msg.Term < r.term {
		_ = r.io.SubmitSend(from, raftsim.Message{
			Type: raftsim.MsgAppendEntriesReply, Term: r.term, Success: false,
		}, nil)
		return
	}
	if r.state != raftsim.StateFollower {
		r.state = raftsim.StateFollower
	}
	r.io.Tick(r.OnTick, r.electionTimeoutMS)

	if msg.PrevLogIndex > r.lastLogIndex() ||
		(msg.PrevLogIndex > 0 && r.log[msg.PrevLogIndex-1].Term != msg.PrevLogTerm) {
		_ = r.io.SubmitSend(from, raftsim.Message{
			Type: raftsim.MsgAppendEntriesReply, Term: r.term, Success: false,
		}, nil)
		return
	}

	newLog := append([]raftsim.Entry(nil), r.log[:msg.PrevLogIndex]...)
	newLog = append(newLog, msg.Entries...)

	r.io.SubmitAppend(msg.Entries, func(err error) {
		success := err == nil
		matchIndex := uint64(len(newLog))
		if success {
			r.log = newLog
			r.io.PersistEntries(r.log)
			if msg.LeaderCommit > r.commitIndex {
				r.commitIndex = minU64(msg.LeaderCommit, r.lastLogIndex())
				r.applyCommitted()
			}
		} else {
			matchIndex = r.matchIndex0()
		}
		_ = r.io.SubmitSend(from, raftsim.Message{
			Type:       raftsim.MsgAppendEntriesReply,
			Term:       r.term,
			Success:    success,
			MatchIndex: matchIndex,
		}, nil)
	})
}

func (r *Raft) matchIndex0() uint64 { return r.lastLogIndex() }

func (r *Raft) handleAppendEntriesReply(from raft.ServerID, msg raftsim.Message) {
	if r.state != raftsim.StateLeader {
		return
	}
	if !msg.Success {
		if idx := r.nextIndex[from]; idx > 1 {
			r.nextIndex[from] = idx - 1
		}
		return
	}

	r.lastAckTime[from] = r.io.Time()
	if msg.MatchIndex > r.matchIndex[from] {
		r.matchIndex[from] = msg.MatchIndex
		r.nextIndex[from] = msg.MatchIndex + 1
	}
	r.advanceCommitIndex()
}

// advanceCommitIndex commits the highest index replicated to a majority of
// voting servers in the leader's current term.
func (r *Raft) advanceCommitIndex() {
	for n := r.lastLogIndex(); n > r.commitIndex; n-- {
		if n == 0 || r.log[n-1].Term != r.term {
			continue
		}
		count := 1
		for _, srv := range r.config.Servers {
			if srv.ID == r.id || !srv.Voting {
				continue
			}
			if r.matchIndex[srv.ID] >= n {
				count++
			}
		}
		if count >= r.config.VotingCount()/2+1 {
			r.commitIndex = n
			r.applyCommitted()
			break
		}
	}
}

func (r *Raft) applyCommitted() {
	for r.lastApplied < r.commitIndex {
		r.lastApplied++
		entry := r.log[r.lastApplied-1]
		if entry.Type == raftsim.EntryNormal && r.fsm != nil {
			r.fsm.Apply(&raft.Log{
				Index: r.lastApplied,
				Term:  entry.Term,
				Type:  raft.LogCommand,
				Data:  entry.Payload,
			})
		}
	}
}

func (r *Raft) sendHeartbeats() {
	for _, srv := range r.config.Servers {
		if srv.ID == r.id {
			continue
		}
		r.sendAppendEntries(srv.ID)
	}
}

func (r *Raft) sendAppendEntries(dest raft.ServerID) {
	next := r.nextIndex[dest]
	if next == 0 {
		next = r.lastLogIndex() + 1
	}
	prevLogIndex := next - 1
	var prevLogTerm uint64
	if prevLogIndex > 0 && prevLogIndex <= uint64(len(r.log)) {
		prevLogTerm = r.log[prevLogIndex-1].Term
	}

	var entries []raftsim.Entry
	if prevLogIndex < r.lastLogIndex() {
		entries = append([]raftsim.Entry(nil), r.log[prevLogIndex:]...)
	}

	msg := raftsim.Message{
		Type:         raftsim.MsgAppendEntries,
		Term:         r.term,
		PrevLogIndex: prevLogIndex,
		PrevLogTerm:  prevLogTerm,
		Entries:      entries,
		LeaderCommit: r.commitIndex,
	}
	r.logger.Debug().Bool("heartbeat", isHeartbeat(msg)).Str("dest", string(dest)).Msg("sending append entries")
	_ = r.io.SubmitSend(dest, msg, nil)
}

func (r *Raft) onLeaderTick() {
	now := r.io.Time()
	acked := 1
	for _, srv := range r.config.Servers {
		if srv.ID == r.id || !srv.Voting {
			continue
		}
		if t, ok := r.lastAckTime[srv.ID]; ok && now-t <= leaseWindowMS {
			acked++
		}
	}
	majority := r.config.VotingCount()/2 + 1
	if acked < majority {
		r.stepDownLeader()
		return
	}
	r.sendHeartbeats()
	r.io.Tick(r.OnTick, heartbeatPeriodMS)
}

func (r *Raft) stepDownLeader() {
	r.logger.Warn().Uint64("term", r.term).Msg("leader lost quorum acknowledgement, stepping down")
	r.state = raftsim.StateFollower
	r.io.Tick(r.OnTick, r.electionTimeoutMS)
}

// Propose submits a normal entry through the leader. It is not part of the
// Peer capability interface — it is the demo/test-facing API a real
// embedder would call through its own client protocol instead.
func (r *Raft) Propose(payload []byte) error {
	entry := raftsim.Entry{Term: r.term, Type: raftsim.EntryNormal, Payload: payload}
	r.log = append(r.log, entry)
	r.io.PersistEntries(r.log)
	if r.matchIndex != nil {
		r.matchIndex[r.id] = r.lastLogIndex()
	}
	r.advanceCommitIndex()
	r.sendHeartbeats()
	return nil
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
