package fakeraft

import (
	"io"
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/raftsim/pkg/raftsim"
)

// countingFSM records how many entries it has applied, enough to assert on
// replication without pulling in a real key/value store.
type countingFSM struct {
	applied int
}

func (f *countingFSM) Apply(l *raft.Log) interface{} {
	f.applied++
	return nil
}
func (f *countingFSM) Snapshot() (raft.FSMSnapshot, error) { return nil, nil }
func (f *countingFSM) Restore(rc io.ReadCloser) error      { return rc.Close() }

func newFixture(t *testing.T, n int) (*raftsim.Fixture, []*countingFSM) {
	t.Helper()
	fsms := make([]*countingFSM, n)
	raftFSMs := make([]raft.FSM, n)
	for i := range fsms {
		fsms[i] = &countingFSM{}
		raftFSMs[i] = fsms[i]
	}

	fx := raftsim.NewFixture(New)
	require.NoError(t, fx.Init(n, raftFSMs))
	require.NoError(t, fx.Bootstrap(fx.Configuration(n)))
	require.NoError(t, fx.Start())
	return fx, fsms
}

func TestSingleServerElection(t *testing.T) {
	fx, _ := newFixture(t, 1)
	ok, err := fx.StepUntilHasLeader(2000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, fx.LeaderIndex())

	term, err := fx.Get(0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, term.Peer.CurrentTerm(), uint64(1))
}

func TestThreeServerElection(t *testing.T) {
	fx, _ := newFixture(t, 3)
	require.NoError(t, fx.Elect(0))

	ok, err := fx.StepUntil(func() bool { return fx.TermIs(0, 1) }, 5000)
	require.NoError(t, err)
	assert.True(t, ok)

	leaders := 0
	for i := 0; i < fx.N(); i++ {
		if fx.StateIs(i, raftsim.StateLeader) {
			leaders++
		}
	}
	assert.Equal(t, 1, leaders)
}

func TestDeposeViaDroppedAcks(t *testing.T) {
	fx, _ := newFixture(t, 3)
	require.NoError(t, fx.Elect(0))

	require.NoError(t, fx.Depose())

	ok, err := fx.StepUntilHasNoLeader(10_000)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSaturationAsymmetry(t *testing.T) {
	fx, _ := newFixture(t, 3)
	require.NoError(t, fx.Saturate(1, 0))

	ok, err := fx.StepUntilDelivered(0, 1, 2000)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fx.StepUntilDelivered(1, 0, 2000)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplicationAfterElection(t *testing.T) {
	fx, fsms := newFixture(t, 3)
	require.NoError(t, fx.Elect(0))

	leader, err := fx.Get(0)
	require.NoError(t, err)
	r := leader.Peer.(*Raft)
	require.NoError(t, r.Propose([]byte("set x=1")))

	ok, err := fx.StepUntilApplied(fx.N(), 2, 5000)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, f := range fsms {
		assert.GreaterOrEqual(t, f.applied, 1)
	}
}
