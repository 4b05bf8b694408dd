package raftsim

// EdgeState is the admission/delivery policy for a directed edge i->j.
type EdgeState int

const (
	// EdgeConnected is the default: sends admit and deliveries succeed.
	EdgeConnected EdgeState = iota
	// EdgeDisconnected rejects sends synchronously with ErrNoConnection.
	EdgeDisconnected
	// EdgeSaturated admits sends locally but drops them silently on delivery.
	EdgeSaturated
)

func (s EdgeState) String() string {
	switch s {
	case EdgeConnected:
		return "connected"
	case EdgeDisconnected:
		return "disconnected"
	case EdgeSaturated:
		return "saturated"
	default:
		return "unknown"
	}
}

// connectivity is the directed N x N matrix described in §3/§4.B. Edges are
// directed so asymmetric partitions are expressible; a symmetric partition
// requires setting both directions.
type connectivity struct {
	n     int
	edges [][]EdgeState
}

func newConnectivity(n int) *connectivity {
	edges := make([][]EdgeState, n)
	for i := range edges {
		edges[i] = make([]EdgeState, n)
	}
	return &connectivity{n: n, edges: edges}
}

func (c *connectivity) state(i, j int) EdgeState {
	return c.edges[i][j]
}

func (c *connectivity) disconnect(i, j int) {
	c.edges[i][j] = EdgeDisconnected
}

func (c *connectivity) reconnect(i, j int) {
	c.edges[i][j] = EdgeConnected
}

func (c *connectivity) saturate(i, j int) {
	c.edges[i][j] = EdgeSaturated
}

func (c *connectivity) desaturate(i, j int) {
	c.edges[i][j] = EdgeConnected
}

func (c *connectivity) saturated(i, j int) bool {
	return c.edges[i][j] == EdgeSaturated
}

// grow appends a new row and column, connected to and from every existing
// server (EdgeConnected is the zero value).
func (c *connectivity) grow() {
	n := c.n + 1
	edges := make([][]EdgeState, n)
	for i := 0; i < c.n; i++ {
		edges[i] = append(c.edges[i], EdgeConnected)
	}
	edges[c.n] = make([]EdgeState, n)
	c.edges = edges
	c.n = n
}
