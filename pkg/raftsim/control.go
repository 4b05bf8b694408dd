package raftsim

import (
	"fmt"

	"github.com/hashicorp/raft"

	"github.com/cuemby/raftsim/pkg/log"
)

// Disconnect makes the directed edge i->j reject sends synchronously.
func (f *Fixture) Disconnect(i, j int) error {
	if err := f.checkEdge(i, j); err != nil {
		return err
	}
	f.conn.disconnect(i, j)
	return nil
}

// Reconnect restores the directed edge i->j to connected.
func (f *Fixture) Reconnect(i, j int) error {
	if err := f.checkEdge(i, j); err != nil {
		return err
	}
	f.conn.reconnect(i, j)
	return nil
}

// Saturate makes the directed edge i->j admit sends locally but drop them
// silently on delivery.
func (f *Fixture) Saturate(i, j int) error {
	if err := f.checkEdge(i, j); err != nil {
		return err
	}
	f.conn.saturate(i, j)
	return nil
}

// Desaturate restores the directed edge i->j to connected.
func (f *Fixture) Desaturate(i, j int) error {
	if err := f.checkEdge(i, j); err != nil {
		return err
	}
	f.conn.desaturate(i, j)
	return nil
}

// Saturated reports whether the directed edge i->j is currently saturated.
func (f *Fixture) Saturated(i, j int) bool {
	if i < 0 || i >= f.n || j < 0 || j >= f.n {
		return false
	}
	return f.conn.saturated(i, j)
}

func (f *Fixture) checkEdge(i, j int) error {
	if i < 0 || i >= f.n || j < 0 || j >= f.n {
		return fmt.Errorf("raftsim: edge (%d,%d): %w", i, j, ErrPreconditionViolation)
	}
	return nil
}

// Kill clears alive and freezes server i's tick timer. Its pending
// send-completions still fire (releasing buffers) but their deliveries
// drop, and new sends from it are rejected with ErrNoConnection. Disk
// appends are not affected: ones already queued still complete, and
// SubmitAppend still accepts new ones from it.
func (f *Fixture) Kill(i int) error {
	s, err := f.Get(i)
	if err != nil {
		return err
	}
	s.Alive = false
	s.IO.tick.armed = false
	f.logger.Warn().Int("server_index", i).Msg("server killed")
	return nil
}

// Grow appends a server bound to fsm, with a fresh id, installing a
// connected row/column in the connectivity matrix. The new server is left
// unbootstrapped and unstarted.
func (f *Fixture) Grow(fsm raft.FSM) (int, error) {
	if f.n >= MaxServers {
		return 0, fmt.Errorf("raftsim: grow: at capacity (%d): %w", MaxServers, ErrPreconditionViolation)
	}

	i := f.n
	id := raft.ServerID(fmt.Sprintf("%d", i+1))
	addr := serverAddress(id)
	logger := log.WithServer(string(id))

	io := newIOBackend(f, i, id)
	peer := f.peerFactory(fsm)
	if err := peer.Init(io, logger, id, addr); err != nil {
		return 0, fmt.Errorf("raftsim: grow init server %d: %w", i, err)
	}

	f.servers = append(f.servers, &Server{
		Alive:   true,
		ID:      id,
		Index:   i,
		Address: addr,
		Logger:  logger,
		IO:      io,
		Peer:    peer,
	})
	f.conn.grow()
	f.voting = append(f.voting, false)
	if f.stableLeaderIndex == f.n {
		f.stableLeaderIndex = i + 1
	}
	f.n = i + 1
	return i, nil
}

// SetRandomizedElectionTimeout re-arms server i's tick timer with a new
// period, preserving its callback.
func (f *Fixture) SetRandomizedElectionTimeout(i int, ms uint64) error {
	s, err := f.Get(i)
	if err != nil {
		return err
	}
	cb := s.IO.tick.cb
	if cb == nil {
		return fmt.Errorf("raftsim: set_randomized_election_timeout(%d): not started: %w", i, ErrPreconditionViolation)
	}
	s.IO.Tick(cb, ms)
	return nil
}

// SetNetworkLatency changes server i's send/delivery latency for future
// submissions.
func (f *Fixture) SetNetworkLatency(i int, ms uint64) error {
	s, err := f.Get(i)
	if err != nil {
		return err
	}
	s.IO.networkLatencyMS = ms
	return nil
}

// SetDiskLatency changes server i's append latency for future submissions.
func (f *Fixture) SetDiskLatency(i int, ms uint64) error {
	s, err := f.Get(i)
	if err != nil {
		return err
	}
	s.IO.diskLatencyMS = ms
	return nil
}

// SetTerm overwrites server i's persisted term directly (test setup hook).
func (f *Fixture) SetTerm(i int, term uint64) error {
	s, err := f.Get(i)
	if err != nil {
		return err
	}
	s.IO.PersistTerm(term)
	return nil
}

// SetSnapshot overwrites server i's persisted snapshot directly.
func (f *Fixture) SetSnapshot(i int, snap *Snapshot) error {
	s, err := f.Get(i)
	if err != nil {
		return err
	}
	s.IO.PersistSnapshot(snap)
	return nil
}

// SetEntries replaces server i's persisted log with entries.
func (f *Fixture) SetEntries(i int, entries []Entry) error {
	s, err := f.Get(i)
	if err != nil {
		return err
	}
	s.IO.setEntries(entries)
	return nil
}

// AddEntry appends a single entry to server i's persisted log. Combined
// with SetEntries, the log equals the concatenation of the two calls.
func (f *Fixture) AddEntry(i int, e Entry) error {
	s, err := f.Get(i)
	if err != nil {
		return err
	}
	s.IO.appendEntry(e)
	return nil
}

// IoFault arms server i's fault schedule: the next delay submissions
// succeed, the following repeat fail, then fault injection is disabled.
// delay = -1 disables it immediately.
func (f *Fixture) IoFault(i int, delay, repeat int) error {
	s, err := f.Get(i)
	if err != nil {
		return err
	}
	s.IO.fault = faultSchedule{delay: delay, repeat: repeat}
	return nil
}

// NSend returns the count of send-callbacks of type t that fired
// successfully on server i.
func (f *Fixture) NSend(i int, t MessageType) (uint64, error) {
	s, err := f.Get(i)
	if err != nil {
		return 0, err
	}
	return s.IO.NSend(t), nil
}

// NRecv returns the count of delivered (not dropped) messages of type t on
// server i.
func (f *Fixture) NRecv(i int, t MessageType) (uint64, error) {
	s, err := f.Get(i)
	if err != nil {
		return 0, err
	}
	return s.IO.NRecv(t), nil
}
