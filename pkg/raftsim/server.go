package raftsim

import (
	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"
)

// Server binds the identity, I/O backend, and bound Peer for one cluster
// member (§3). Index is stable for the server's lifetime; ID is typically
// index+1 rendered as a string, matching the hashicorp/raft identifier
// types so a harness-built Configuration is interchangeable with a real
// deployment's.
type Server struct {
	Alive   bool
	ID      raft.ServerID
	Index   int
	Address raft.ServerAddress
	Logger  zerolog.Logger
	IO      *IOBackend
	Peer    Peer
}
