package fakeraft

import "github.com/cuemby/raftsim/pkg/raftsim"

// isHeartbeat reports whether msg carries no new entries, the shape a
// leader sends on its idle heartbeat cadence rather than in response to a
// Propose call.
func isHeartbeat(msg raftsim.Message) bool {
	return msg.Type == raftsim.MsgAppendEntries && len(msg.Entries) == 0
}
