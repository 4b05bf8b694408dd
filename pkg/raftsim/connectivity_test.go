package raftsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectivityDefaultsAllConnected(t *testing.T) {
	c := newConnectivity(3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, EdgeConnected, c.state(i, j))
		}
	}
}

func TestDisconnectReconnectRoundTrip(t *testing.T) {
	c := newConnectivity(2)
	c.disconnect(0, 1)
	assert.Equal(t, EdgeDisconnected, c.state(0, 1))
	assert.Equal(t, EdgeConnected, c.state(1, 0), "edges are directed: 1->0 is unaffected")

	c.reconnect(0, 1)
	assert.Equal(t, EdgeConnected, c.state(0, 1))
}

func TestSaturateDesaturateRoundTrip(t *testing.T) {
	c := newConnectivity(2)
	c.saturate(0, 1)
	assert.True(t, c.saturated(0, 1))
	assert.False(t, c.saturated(1, 0))

	c.desaturate(0, 1)
	assert.False(t, c.saturated(0, 1))
	assert.Equal(t, EdgeConnected, c.state(0, 1))
}

func TestGrowAppendsConnectedRowAndColumn(t *testing.T) {
	c := newConnectivity(2)
	c.disconnect(0, 1)
	c.grow()

	assert.Equal(t, 3, c.n)
	assert.Equal(t, EdgeDisconnected, c.state(0, 1), "grow must not disturb existing edges")
	assert.Equal(t, EdgeConnected, c.state(0, 2))
	assert.Equal(t, EdgeConnected, c.state(2, 0))
	assert.Equal(t, EdgeConnected, c.state(2, 1))
}

// TestFixtureDisconnectReconnectViaControlSurface exercises the
// disconnect/reconnect round trip through the public Fixture surface rather
// than the bare matrix, confirming SubmitSend honors ErrNoConnection while
// the edge is down and resumes once reconnected.
func TestFixtureDisconnectReconnectViaControlSurface(t *testing.T) {
	fx := newTestFixture(t, 3)
	require.NoError(t, fx.Disconnect(0, 1))
	assert.False(t, fx.Saturated(0, 1))

	s0, err := fx.Get(0)
	require.NoError(t, err)
	s1, err := fx.Get(1)
	require.NoError(t, err)

	msg := Message{Type: MsgAppendEntries}
	err = s0.IO.SubmitSend(s1.ID, msg, nil)
	assert.ErrorIs(t, err, ErrNoConnection)

	require.NoError(t, fx.Reconnect(0, 1))
	err = s0.IO.SubmitSend(s1.ID, msg, nil)
	assert.NoError(t, err)
}
