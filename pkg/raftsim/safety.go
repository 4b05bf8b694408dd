package raftsim

import "github.com/cuemby/raftsim/pkg/metrics"

// votingCount is set by Bootstrap from the seeded configuration and used
// by the safety monitor's majority computation.
func (f *Fixture) setVotingCount(n int) { f.votingCount = n }

// checkSafety implements §4.E Phase 3: Election Safety, then — when the
// detected stable leader is unchanged from the previous step — Leader
// Append-Only. It never mutates the fixture's recorded leader state; that
// is Phase 4 (snapshotLeaderState), run only when this returns nil.
func (f *Fixture) checkSafety() *InvariantViolation {
	candidates, leadersByTerm := f.leaderCandidates()

	for term, idxs := range leadersByTerm {
		if len(idxs) > 1 {
			return newInvariantViolation(ViolationElectionSafety, idxs,
				"servers %v all report leader state at term %d", idxs, term)
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	leaderIdx := f.highestTermLeader(candidates)

	if !f.isStableLeader(leaderIdx) {
		return nil
	}

	metrics.LeaderTerm.Set(float64(f.servers[leaderIdx].Peer.CurrentTerm()))

	if leaderIdx == f.stableLeaderIndex && f.stableLeaderLog != nil {
		current := f.servers[leaderIdx].Peer.LogView()
		if !isPrefix(f.stableLeaderLog, current) {
			return newInvariantViolation(ViolationLeaderAppendOnly, []int{leaderIdx},
				"server %d's log is no longer an extension of its previously observed prefix", leaderIdx)
		}
	}

	return nil
}

// leaderCandidates returns the index of every alive server currently
// reporting leader state, alongside the same indices grouped by term (used
// by checkSafety's Election Safety check). Shared by checkSafety and
// snapshotLeaderState so both phases agree on what "the" leader is during
// a transient multi-term leader window.
func (f *Fixture) leaderCandidates() (candidates []int, byTerm map[uint64][]int) {
	byTerm = make(map[uint64][]int)
	for i, s := range f.servers {
		if !s.Alive || s.Peer.State() != StateLeader {
			continue
		}
		term := s.Peer.CurrentTerm()
		byTerm[term] = append(byTerm[term], i)
		candidates = append(candidates, i)
	}
	return candidates, byTerm
}

// highestTermLeader picks the candidate with the highest current term,
// the harness's tie-break for "the" leader when more than one server
// reports leader state at different terms (an old leader that hasn't yet
// heard of a newer election).
func (f *Fixture) highestTermLeader(candidates []int) int {
	leaderIdx := candidates[0]
	leaderTerm := f.servers[leaderIdx].Peer.CurrentTerm()
	for _, i := range candidates[1:] {
		if t := f.servers[i].Peer.CurrentTerm(); t > leaderTerm {
			leaderIdx, leaderTerm = i, t
		}
	}
	return leaderIdx
}

// isStableLeader implements the §9-decided acknowledgement criterion: a
// peer acknowledges the leader when its match_index is at least the
// leader's last log index. A leader is stable when it and its acknowledging
// reachable peers form a majority of the voting set.
func (f *Fixture) isStableLeader(leaderIdx int) bool {
	leader := f.servers[leaderIdx]
	lastIndex := uint64(len(leader.Peer.LogView()))

	acked := 1 // the leader acknowledges itself
	for i, s := range f.servers {
		if i == leaderIdx || !s.Alive {
			continue
		}
		if f.conn.state(leaderIdx, i) != EdgeConnected {
			continue
		}
		match, ok := leader.Peer.MatchIndex(s.ID)
		if ok && match >= lastIndex {
			acked++
		}
	}

	majority := f.votingCount/2 + 1
	return acked >= majority
}

// snapshotLeaderState implements §4.E Phase 4, recording the stable
// leader's log and commit index for comparison on the next step.
func (f *Fixture) snapshotLeaderState() {
	candidates, _ := f.leaderCandidates()
	if len(candidates) == 0 {
		f.stableLeaderIndex = f.n
		f.stableLeaderLog = nil
		metrics.LeaderTerm.Set(0)
		return
	}

	leaderIdx := f.highestTermLeader(candidates)
	if !f.isStableLeader(leaderIdx) {
		f.stableLeaderIndex = f.n
		f.stableLeaderLog = nil
		metrics.LeaderTerm.Set(0)
		return
	}

	leader := f.servers[leaderIdx]
	f.stableLeaderIndex = leaderIdx
	f.stableLeaderLog = append([]Entry(nil), leader.Peer.LogView()...)
	f.stableCommitIndex = leader.Peer.CommitIndex()
}

func isPrefix(prev, current []Entry) bool {
	if len(current) < len(prev) {
		return false
	}
	for i, e := range prev {
		if current[i].Term != e.Term || current[i].Type != e.Type || string(current[i].Payload) != string(e.Payload) {
			return false
		}
	}
	return true
}
