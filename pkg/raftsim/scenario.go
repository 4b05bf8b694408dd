package raftsim

import (
	"errors"
	"fmt"
)

// electionHorizonMS is large enough that a server holding it as its
// election timeout will never fire within any plausible simulation run
// started by elect().
const electionHorizonMS = 1_000_000_000

// Elect drives server i to leader state under the preconditions from §4.F:
// no leader, no candidate, i voting and connected to a majority of voting
// peers. Every other server's election timeout is pushed past the
// simulation horizon, i keeps its default, and the fixture steps until i
// is a stable leader; the other servers' timeouts are then restored to
// their defaults, and i's timer is left as its Peer armed it.
func (f *Fixture) Elect(i int) error {
	if f.HasLeader() {
		return fmt.Errorf("raftsim: elect(%d): leader already present: %w", i, ErrPreconditionViolation)
	}
	for _, s := range f.servers {
		if s.Alive && s.Peer.State() == StateCandidate {
			return fmt.Errorf("raftsim: elect(%d): candidate already in progress: %w", i, ErrPreconditionViolation)
		}
	}
	if i < 0 || i >= len(f.voting) || !f.voting[i] {
		return fmt.Errorf("raftsim: elect(%d): not a voting server: %w", i, ErrPreconditionViolation)
	}
	if !f.connectedToMajority(i) {
		return fmt.Errorf("raftsim: elect(%d): not connected to a majority of voting peers: %w", i, ErrPreconditionViolation)
	}

	for k, s := range f.servers {
		if k == i {
			continue
		}
		if s.IO.tick.cb != nil {
			_ = f.SetRandomizedElectionTimeout(k, electionHorizonMS)
		}
	}

	ok, err := f.StepUntil(func() bool {
		return f.StateIs(i, StateLeader) && f.stableLeaderIndex == i
	}, electionHorizonMS)

	for k := range f.servers {
		if k == i {
			continue
		}
		_ = f.SetRandomizedElectionTimeout(k, f.electionBaseMS+uint64(k)*f.electionStepMS)
	}

	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("raftsim: elect(%d): %w", i, ErrTimeout)
	}
	return nil
}

// Depose arranges for the current leader's incoming AppendEntries results
// to be dropped (by saturating every other alive server's edge back to it)
// and steps until it leaves leader state.
func (f *Fixture) Depose() error {
	leaderIdx := f.LeaderIndex()
	if leaderIdx == f.n {
		return fmt.Errorf("raftsim: depose: no current leader: %w", ErrPreconditionViolation)
	}

	for j, s := range f.servers {
		if j == leaderIdx || !s.Alive {
			continue
		}
		_ = f.Saturate(j, leaderIdx)
	}

	ok, err := f.StepUntil(func() bool {
		return !f.StateIs(leaderIdx, StateLeader)
	}, 10_000)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("raftsim: depose: %w", ErrTimeout)
	}
	return nil
}

// StepN invokes Step k times and returns the last dispatched event.
func (f *Fixture) StepN(k int) (*Event, error) {
	var ev *Event
	var err error
	for n := 0; n < k; n++ {
		ev, err = f.Step()
		if err != nil {
			return ev, err
		}
	}
	return ev, nil
}

// StepUntil repeats Step while pred is false and elapsed virtual time
// since the call is within maxMS, returning whether pred became true.
func (f *Fixture) StepUntil(pred func() bool, maxMS uint64) (bool, error) {
	start := f.t
	for {
		if pred() {
			return true, nil
		}
		if f.t-start >= maxMS {
			return false, nil
		}
		if _, err := f.Step(); err != nil {
			if errors.Is(err, ErrNoPendingEvents) {
				return false, nil
			}
			return false, err
		}
	}
}

// StepUntilElapsed advances virtual time by at least ms, dispatching
// whatever events occur meanwhile.
func (f *Fixture) StepUntilElapsed(ms uint64) (bool, error) {
	return f.StepUntil(func() bool { return false }, ms)
}

func (f *Fixture) StepUntilHasLeader(maxMS uint64) (bool, error) {
	return f.StepUntil(f.HasLeader, maxMS)
}

func (f *Fixture) StepUntilHasNoLeader(maxMS uint64) (bool, error) {
	return f.StepUntil(f.HasNoLeader, maxMS)
}

func (f *Fixture) StepUntilApplied(i int, index uint64, maxMS uint64) (bool, error) {
	return f.StepUntil(func() bool { return f.Applied(i, index) }, maxMS)
}

func (f *Fixture) StepUntilStateIs(i int, state PeerState, maxMS uint64) (bool, error) {
	return f.StepUntil(func() bool { return f.StateIs(i, state) }, maxMS)
}

func (f *Fixture) StepUntilTermIs(i int, term uint64, maxMS uint64) (bool, error) {
	return f.StepUntil(func() bool { return f.TermIs(i, term) }, maxMS)
}

func (f *Fixture) StepUntilVotedFor(i, j int, maxMS uint64) (bool, error) {
	return f.StepUntil(func() bool { return f.VotedForIs(i, j) }, maxMS)
}

func (f *Fixture) StepUntilDelivered(i, j int, maxMS uint64) (bool, error) {
	return f.StepUntil(func() bool { return f.Delivered(i, j) }, maxMS)
}

// HasLeader reports whether a stable leader is currently recorded.
func (f *Fixture) HasLeader() bool { return f.LeaderIndex() != f.n }

// HasNoLeader is the negation of HasLeader, convenient as a predicate value.
func (f *Fixture) HasNoLeader() bool { return f.LeaderIndex() == f.n }

// Applied reports whether server i (or, when i == N(), every alive server)
// has applied at least index.
func (f *Fixture) Applied(i int, index uint64) bool {
	if i == f.n {
		for _, s := range f.servers {
			if s.Alive && s.Peer.LastApplied() < index {
				return false
			}
		}
		return true
	}
	s, err := f.Get(i)
	if err != nil {
		return false
	}
	return s.Peer.LastApplied() >= index
}

// StateIs reports whether server i's Peer currently reports state.
func (f *Fixture) StateIs(i int, state PeerState) bool {
	s, err := f.Get(i)
	if err != nil {
		return false
	}
	return s.Peer.State() == state
}

// TermIs reports whether server i's Peer currently reports term.
func (f *Fixture) TermIs(i int, term uint64) bool {
	s, err := f.Get(i)
	if err != nil {
		return false
	}
	return s.Peer.CurrentTerm() == term
}

// VotedForIs reports whether server i's Peer has voted for server j.
func (f *Fixture) VotedForIs(i, j int) bool {
	is, err := f.Get(i)
	if err != nil {
		return false
	}
	js, err := f.Get(j)
	if err != nil {
		return false
	}
	return is.Peer.VotedFor() == js.ID
}

// Delivered reports whether the transit queue from i to j is empty and
// there is no pending send from i to j still in the send queue.
func (f *Fixture) Delivered(i, j int) bool {
	js, err := f.Get(j)
	if err != nil {
		return false
	}
	for _, it := range js.IO.transit {
		if it.fromIndex == i {
			return false
		}
	}
	is, err := f.Get(i)
	if err != nil {
		return false
	}
	for _, it := range is.IO.sendQueue {
		if it.destIndex == j {
			return false
		}
	}
	return true
}

func (f *Fixture) connectedToMajority(i int) bool {
	reachable := 1
	for j := range f.servers {
		if j == i || j >= len(f.voting) || !f.voting[j] {
			continue
		}
		if f.conn.state(i, j) == EdgeConnected {
			reachable++
		}
	}
	return reachable >= f.votingCount/2+1
}
