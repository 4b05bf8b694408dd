package raftsim

import (
	"fmt"

	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"

	"github.com/cuemby/raftsim/pkg/log"
)

// MaxServers is the capacity guarantee from §6: at least 8 servers.
const MaxServers = 8

const (
	defaultDiskLatencyMS         = 10
	defaultNetworkLatencyMS      = 15
	defaultElectionTimeoutBaseMS = 1000
	defaultElectionTimeoutStepMS = 100
)

// Fixture is the singleton discrete-event harness described in §2-§5: a
// shared virtual clock, the per-server I/O backends, the connectivity
// matrix, and the safety monitor's running state. All mutation happens
// through its methods; there is no hidden global state.
type Fixture struct {
	t uint64
	n int

	servers []*Server
	conn    *connectivity

	peerFactory PeerFactory

	diskLatencyDefaultMS    uint64
	networkLatencyDefaultMS uint64
	electionBaseMS          uint64
	electionStepMS          uint64
	votingCount             int
	voting                  []bool

	lastEvent Event
	hook      EventHook

	// safety monitor running state (§4.E phase 3/4)
	stableLeaderIndex int // len(servers) when none
	stableLeaderLog   []Entry
	stableCommitIndex uint64

	logger zerolog.Logger
}

// NewFixture returns an empty fixture with default latencies and election
// timeouts; servers and the connectivity matrix are allocated by Init.
// peerFactory binds one Peer per server, constructed in Init against fsms.
func NewFixture(peerFactory PeerFactory) *Fixture {
	return &Fixture{
		peerFactory:             peerFactory,
		diskLatencyDefaultMS:    defaultDiskLatencyMS,
		networkLatencyDefaultMS: defaultNetworkLatencyMS,
		electionBaseMS:          defaultElectionTimeoutBaseMS,
		electionStepMS:          defaultElectionTimeoutStepMS,
		logger:                  log.WithComponent("fixture"),
	}
}

// Init allocates n servers (one Peer per entry in fsms) and a full-mesh
// connectivity matrix. It does not bootstrap or start them.
func (f *Fixture) Init(n int, fsms []raft.FSM) error {
	if n <= 0 || n > MaxServers {
		return fmt.Errorf("raftsim: init(%d): %w", n, ErrPreconditionViolation)
	}
	if len(fsms) != n {
		return fmt.Errorf("raftsim: init: got %d fsms for %d servers: %w", len(fsms), n, ErrPreconditionViolation)
	}

	f.n = n
	f.conn = newConnectivity(n)
	f.servers = make([]*Server, n)
	f.stableLeaderIndex = n

	for i := 0; i < n; i++ {
		id := raft.ServerID(fmt.Sprintf("%d", i+1))
		addr := serverAddress(id)
		logger := log.WithServer(string(id))

		io := newIOBackend(f, i, id)
		peer := f.peerFactory(fsms[i])
		if err := peer.Init(io, logger, id, addr); err != nil {
			return fmt.Errorf("raftsim: init server %d: %w", i, err)
		}

		f.servers[i] = &Server{
			Alive:   true,
			ID:      id,
			Index:   i,
			Address: addr,
			Logger:  logger,
			IO:      io,
			Peer:    peer,
		}
	}
	return nil
}

// Close releases server resources in reverse index order, stopping each
// bound Peer.
func (f *Fixture) Close() error {
	var firstErr error
	for i := len(f.servers) - 1; i >= 0; i-- {
		if err := f.servers[i].Peer.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Configuration builds the `{id, address, voting}` record for all
// initialized servers, the first nVoting of them marked voting.
func (f *Fixture) Configuration(nVoting int) Configuration {
	cfg := Configuration{}
	for i, s := range f.servers {
		cfg.Servers = append(cfg.Servers, ServerInfo{
			ID:      s.ID,
			Address: s.Address,
			Voting:  i < nVoting,
		})
	}
	return cfg
}

// Bootstrap hands the identical initial configuration to every server's
// Peer.Bootstrap, which seeds that server's persisted state through its IO
// handle, and records the configuration's voting count and voting flags.
func (f *Fixture) Bootstrap(cfg Configuration) error {
	for _, s := range f.servers {
		if err := s.Peer.Bootstrap(cfg); err != nil {
			return fmt.Errorf("raftsim: bootstrap server %d: %w", s.Index, err)
		}
	}
	f.setVotingCount(cfg.VotingCount())
	f.voting = make([]bool, len(cfg.Servers))
	for i, s := range cfg.Servers {
		if i < len(f.voting) {
			f.voting[i] = s.Voting
		}
	}
	return nil
}

// Start arms tick timers on every server by starting its bound Peer. Each
// Peer implementation is responsible for arming its own initial tick
// through its IO capability handle (§4.C: tick is something Raft calls on
// I/O, not the other way around).
func (f *Fixture) Start() error {
	for _, s := range f.servers {
		if err := s.Peer.Start(); err != nil {
			return fmt.Errorf("raftsim: start server %d: %w", s.Index, err)
		}
	}
	return nil
}

// N returns the current server count (grow() increases it).
func (f *Fixture) N() int { return f.n }

// Time returns the current virtual clock, in milliseconds.
func (f *Fixture) Time() uint64 { return f.t }

// Get returns the server record at index i.
func (f *Fixture) Get(i int) (*Server, error) {
	if i < 0 || i >= len(f.servers) {
		return nil, fmt.Errorf("raftsim: get(%d): %w", i, ErrPreconditionViolation)
	}
	return f.servers[i], nil
}

// Alive reports whether server i is alive.
func (f *Fixture) Alive(i int) bool {
	if i < 0 || i >= len(f.servers) {
		return false
	}
	return f.servers[i].Alive
}

// LeaderIndex returns the index of the current stable leader, or N() if
// there is none — matching the capacity-sentinel convention used across
// the public surface.
func (f *Fixture) LeaderIndex() int {
	return f.stableLeaderIndex
}

// VotedFor returns server i's currently persisted vote.
func (f *Fixture) VotedFor(i int) (raft.ServerID, error) {
	s, err := f.Get(i)
	if err != nil {
		return "", err
	}
	return s.Peer.VotedFor(), nil
}

// Hook installs (or clears, with nil) the event hook invoked after every
// dispatched step.
func (f *Fixture) Hook(cb EventHook) {
	f.hook = cb
}

func (f *Fixture) indexOf(id raft.ServerID) (int, bool) {
	for _, s := range f.servers {
		if s.ID == id {
			return s.Index, true
		}
	}
	return 0, false
}
