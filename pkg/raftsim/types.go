package raftsim

import (
	"fmt"

	"github.com/hashicorp/raft"
)

// EventType classifies the single callback a step dispatches.
type EventType int

const (
	EventTick EventType = iota + 1
	EventNetwork
	EventDisk
)

func (t EventType) String() string {
	switch t {
	case EventTick:
		return "TICK"
	case EventNetwork:
		return "NETWORK"
	case EventDisk:
		return "DISK"
	default:
		return "UNKNOWN"
	}
}

// Event describes the single dispatch performed by the most recent step.
type Event struct {
	ServerIndex int
	Type        EventType
}

// EventHook observes every dispatched event. It runs synchronously on the
// step goroutine and must not call back into Step.
type EventHook func(f *Fixture, e Event)

// MessageType distinguishes the RPC shapes exchanged between Raft peers.
type MessageType int

const (
	MsgRequestVote MessageType = iota
	MsgRequestVoteReply
	MsgAppendEntries
	MsgAppendEntriesReply
)

func (t MessageType) String() string {
	switch t {
	case MsgRequestVote:
		return "RequestVote"
	case MsgRequestVoteReply:
		return "RequestVoteReply"
	case MsgAppendEntries:
		return "AppendEntries"
	case MsgAppendEntriesReply:
		return "AppendEntriesReply"
	default:
		return "Unknown"
	}
}

// Message is the flat envelope carried by the in-memory network. Peer
// implementations populate only the fields relevant to Type.
type Message struct {
	Type MessageType
	Term uint64
	From raft.ServerID
	To   raft.ServerID

	// RequestVote / RequestVoteReply
	LastLogIndex uint64
	LastLogTerm  uint64
	VoteGranted  bool

	// AppendEntries / AppendEntriesReply
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []Entry
	LeaderCommit uint64
	Success      bool
	MatchIndex   uint64
}

// EntryType distinguishes normal user commands from configuration changes.
type EntryType int

const (
	EntryNormal EntryType = iota
	EntryConfiguration
)

// Entry is a single persisted log record. Index is implicit in its position.
type Entry struct {
	Term    uint64
	Type    EntryType
	Payload []byte
}

// Snapshot is the persisted state capturing a log prefix.
type Snapshot struct {
	Index         uint64
	Term          uint64
	Configuration Configuration
	Data          []byte
}

// ServerInfo is one row of a Configuration record.
type ServerInfo struct {
	ID      raft.ServerID
	Address raft.ServerAddress
	Voting  bool
}

// Configuration is the `{id, address, voting}` list a bootstrap seeds onto
// every server. It is structurally interchangeable with a real
// hashicorp/raft configuration.
type Configuration struct {
	Servers []ServerInfo
}

// ToRaft converts to the hashicorp/raft representation, giving voting
// servers raft.Voter suffrage and the rest raft.Nonvoter.
func (c Configuration) ToRaft() raft.Configuration {
	out := raft.Configuration{}
	for _, s := range c.Servers {
		suffrage := raft.Nonvoter
		if s.Voting {
			suffrage = raft.Voter
		}
		out.Servers = append(out.Servers, raft.Server{
			ID:       s.ID,
			Address:  s.Address,
			Suffrage: suffrage,
		})
	}
	return out
}

// VotingCount reports how many servers in the configuration count toward
// quorum computations.
func (c Configuration) VotingCount() int {
	n := 0
	for _, s := range c.Servers {
		if s.Voting {
			n++
		}
	}
	return n
}

// PeerState mirrors the states a Raft instance reports to the harness.
type PeerState int

const (
	StateFollower PeerState = iota
	StateCandidate
	StateLeader
	StateUnavailable
)

func (s PeerState) String() string {
	switch s {
	case StateFollower:
		return "follower"
	case StateCandidate:
		return "candidate"
	case StateLeader:
		return "leader"
	case StateUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// serverAddress derives the short printable address for the server with
// the given id (by the harness's convention, id = index+1).
func serverAddress(id raft.ServerID) raft.ServerAddress {
	return raft.ServerAddress(fmt.Sprintf("sim://%s", id))
}
