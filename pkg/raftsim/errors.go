package raftsim

import (
	"errors"
	"fmt"
)

// Sentinel errors recovered via errors.Is at call sites.
var (
	// ErrNoConnection is returned synchronously when a send is submitted on
	// a disconnected edge.
	ErrNoConnection = errors.New("raftsim: no connection")

	// ErrPreconditionViolation is returned by scenario drivers and the
	// control surface when called with arguments the current state can't
	// satisfy (electing with no quorum, growing past capacity, addressing
	// a server that doesn't exist).
	ErrPreconditionViolation = errors.New("raftsim: precondition violation")

	// ErrTimeout is the non-fatal outcome of a step_until_* loop that never
	// observed its predicate become true within the virtual deadline.
	ErrTimeout = errors.New("raftsim: timeout")

	// ErrNoPendingEvents is returned by Step when no server has any
	// outstanding send, disk, or tick work — nothing left to advance to.
	ErrNoPendingEvents = errors.New("raftsim: no pending events")
)

// ViolationKind distinguishes the cluster-wide safety properties the safety
// monitor enforces.
type ViolationKind int

const (
	ViolationElectionSafety ViolationKind = iota
	ViolationLeaderAppendOnly
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationElectionSafety:
		return "election-safety"
	case ViolationLeaderAppendOnly:
		return "leader-append-only"
	default:
		return "unknown"
	}
}

// InvariantViolation is fatal: per the error taxonomy it is never recovered.
// Step raises it with panic rather than returning it.
type InvariantViolation struct {
	Kind    ViolationKind
	Message string
	Servers []int
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("raftsim: invariant violation (%s): %s [servers=%v]", e.Kind, e.Message, e.Servers)
}

func newInvariantViolation(kind ViolationKind, servers []int, format string, args ...interface{}) *InvariantViolation {
	return &InvariantViolation{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Servers: servers,
	}
}

// IoFault is the scheduled disk-failure outcome triggered by a server's
// fault counter (§3, §7).
type IoFault struct {
	ServerIndex int
}

func (e *IoFault) Error() string {
	return fmt.Sprintf("raftsim: io fault on server %d", e.ServerIndex)
}

func newIOFault(serverIndex int) error {
	return &IoFault{ServerIndex: serverIndex}
}
