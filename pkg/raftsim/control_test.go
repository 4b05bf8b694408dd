package raftsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetEntriesThenAddEntryConcatenates covers the round-trip law from
// §8: after SetEntries(i, entries) followed by AddEntry(i, e), server i's
// persisted log equals entries with e appended.
func TestSetEntriesThenAddEntryConcatenates(t *testing.T) {
	fx := newTestFixture(t, 1)
	base := []Entry{{Term: 1, Payload: []byte("a")}, {Term: 1, Payload: []byte("b")}}
	require.NoError(t, fx.SetEntries(0, base))

	extra := Entry{Term: 2, Payload: []byte("c")}
	require.NoError(t, fx.AddEntry(0, extra))

	s, err := fx.Get(0)
	require.NoError(t, err)
	want := append(append([]Entry(nil), base...), extra)
	assert.Equal(t, want, s.IO.LogEntries())
}

// TestIoFaultSchedule confirms the delay/repeat countdown from §3/§7: the
// next `delay` submissions succeed, the following `repeat` fail, then
// fault injection disables itself.
func TestIoFaultSchedule(t *testing.T) {
	fx := newTestFixture(t, 1)
	require.NoError(t, fx.IoFault(0, 1, 2))

	s, err := fx.Get(0)
	require.NoError(t, err)

	var outcomes []bool
	cb := func(err error) { outcomes = append(outcomes, err != nil) }
	for i := 0; i < 4; i++ {
		s.IO.SubmitAppend(nil, cb)
	}

	require.Len(t, s.IO.appendQueue, 4)
	assert.False(t, s.IO.appendQueue[0].fail, "first submission is within the delay window")
	assert.True(t, s.IO.appendQueue[1].fail, "second submission falls in the repeat-fail window")
	assert.True(t, s.IO.appendQueue[2].fail, "third submission is the last of the repeat-fail window")
	assert.False(t, s.IO.appendQueue[3].fail, "fault schedule disables itself once repeat is exhausted")
}

func TestKillFreezesTickAndClearsAlive(t *testing.T) {
	fx := newTestFixture(t, 1)
	s, err := fx.Get(0)
	require.NoError(t, err)
	s.IO.Tick(nil, 10)

	require.NoError(t, fx.Kill(0))
	assert.False(t, fx.Alive(0))
	assert.False(t, s.IO.tick.armed)
}
