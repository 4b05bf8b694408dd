package raftsim

import (
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSafetyDetectsElectionSafetyViolation(t *testing.T) {
	fx := newTestFixture(t, 2)
	for _, i := range []int{0, 1} {
		s, err := fx.Get(i)
		require.NoError(t, err)
		p := s.Peer.(*stubPeer)
		p.state = StateLeader
		p.term = 7
	}

	v := fx.checkSafety()
	require.NotNil(t, v)
	assert.Equal(t, ViolationElectionSafety, v.Kind)
	assert.ElementsMatch(t, []int{0, 1}, v.Servers)
}

func TestCheckSafetyNilWhenNoLeader(t *testing.T) {
	fx := newTestFixture(t, 3)
	assert.Nil(t, fx.checkSafety())
}

func TestCheckSafetyNilWhenLeaderNotYetStable(t *testing.T) {
	fx := newTestFixture(t, 3)
	fx.setVotingCount(3)
	s0, err := fx.Get(0)
	require.NoError(t, err)
	p := s0.Peer.(*stubPeer)
	p.state = StateLeader
	p.term = 1
	p.log = []Entry{{Term: 1, Type: EntryNormal}}
	// No peer has acknowledged: leader alone is not a majority of 3.

	assert.Nil(t, fx.checkSafety())
}

func TestIsStableLeaderRequiresMajorityAck(t *testing.T) {
	fx := newTestFixture(t, 3)
	fx.setVotingCount(3)
	s0, err := fx.Get(0)
	require.NoError(t, err)
	s1, err := fx.Get(1)
	require.NoError(t, err)

	leader := s0.Peer.(*stubPeer)
	leader.state = StateLeader
	leader.log = []Entry{{Term: 1, Type: EntryNormal}}
	leader.match = map[raft.ServerID]uint64{s1.ID: 1}

	assert.True(t, fx.isStableLeader(0))
}

func TestIsStableLeaderIgnoresDisconnectedAcks(t *testing.T) {
	fx := newTestFixture(t, 3)
	fx.setVotingCount(3)
	s0, err := fx.Get(0)
	require.NoError(t, err)
	s1, err := fx.Get(1)
	require.NoError(t, err)
	require.NoError(t, fx.Disconnect(0, 1))

	leader := s0.Peer.(*stubPeer)
	leader.state = StateLeader
	leader.log = []Entry{{Term: 1, Type: EntryNormal}}
	leader.match = map[raft.ServerID]uint64{s1.ID: 1}

	// The leader's own edge to server 1 is down, so its ack can't count
	// even though match_index says it replicated.
	assert.False(t, fx.isStableLeader(0))
}

func TestIsPrefixDetectsTruncation(t *testing.T) {
	prev := []Entry{{Term: 1}, {Term: 1}}
	current := []Entry{{Term: 1}}
	assert.False(t, isPrefix(prev, current))
	assert.True(t, isPrefix(prev, append(current, Entry{Term: 1}, Entry{Term: 2})))
}
