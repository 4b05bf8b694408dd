package raftsim

import (
	"fmt"

	"github.com/hashicorp/raft"
)

// appendRequest is one entry in a server's persistence queue.
type appendRequest struct {
	entries      []Entry
	completionMS uint64
	fail         bool
	cb           AppendCallback
}

// sendItem is one entry in a server's outbound send queue, awaiting buffer
// release.
type sendItem struct {
	dest         raft.ServerID
	destIndex    int
	msg          Message
	completionMS uint64
	cb           SendCallback
}

// transitItem is a message whose send has completed and which is now
// in flight toward a destination's receive callback.
type transitItem struct {
	from       raft.ServerID
	fromIndex  int
	msg        Message
	deliveryMS uint64
}

type tickTimer struct {
	armed      bool
	period     uint64
	nextExpiry uint64
	cb         TickCallback
}

type faultSchedule struct {
	delay  int
	repeat int
}

// hit consumes one submission against the schedule and reports whether it
// should fail. delay = -1 disables fault injection entirely.
func (f *faultSchedule) hit() bool {
	if f.delay < 0 {
		return false
	}
	if f.delay > 0 {
		f.delay--
		return false
	}
	if f.repeat > 0 {
		f.repeat--
		if f.repeat == 0 {
			f.delay = -1
		}
		return true
	}
	return false
}

// IOBackend is the per-server in-memory I/O capability (§4.C). It is owned
// exclusively by the Fixture; the bound Peer receives a non-owning handle
// to it (via the IO interface) at bind time.
type IOBackend struct {
	fx    *Fixture
	index int
	id    raft.ServerID

	term     uint64
	votedFor raft.ServerID
	log      []Entry
	snapshot *Snapshot

	appendQueue []*appendRequest
	sendQueue   []*sendItem
	transit     []*transitItem

	recvCB RecvCallback
	tick   tickTimer

	diskLatencyMS    uint64
	networkLatencyMS uint64

	nSend map[MessageType]uint64
	nRecv map[MessageType]uint64

	fault faultSchedule
}

func newIOBackend(fx *Fixture, index int, id raft.ServerID) *IOBackend {
	return &IOBackend{
		fx:               fx,
		index:            index,
		id:               id,
		diskLatencyMS:    fx.diskLatencyDefaultMS,
		networkLatencyMS: fx.networkLatencyDefaultMS,
		nSend:            make(map[MessageType]uint64),
		nRecv:             make(map[MessageType]uint64),
		fault:            faultSchedule{delay: -1},
	}
}

// SubmitAppend enqueues a persistence request at t + disk_latency, or at t
// with a failing outcome if the fault schedule is armed for this submission.
func (b *IOBackend) SubmitAppend(entries []Entry, cb AppendCallback) {
	t := b.fx.t
	fail := b.fault.hit()
	completion := t + b.diskLatencyMS
	if fail {
		completion = t
	}
	b.appendQueue = append(b.appendQueue, &appendRequest{
		entries:      entries,
		completionMS: completion,
		fail:         fail,
		cb:           cb,
	})
}

// SubmitSend enqueues an outbound message, or fails synchronously with
// ErrNoConnection if this server has been killed or the edge to dest is
// disconnected.
func (b *IOBackend) SubmitSend(dest raft.ServerID, msg Message, cb SendCallback) error {
	if !b.fx.Alive(b.index) {
		return fmt.Errorf("raftsim: submit_send from dead server %d: %w", b.index, ErrNoConnection)
	}
	destIndex, ok := b.fx.indexOf(dest)
	if !ok {
		return fmt.Errorf("raftsim: submit_send to unknown server %s: %w", dest, ErrPreconditionViolation)
	}
	if b.fx.conn.state(b.index, destIndex) == EdgeDisconnected {
		return fmt.Errorf("raftsim: %d->%d: %w", b.index, destIndex, ErrNoConnection)
	}
	msg.From = b.id
	msg.To = dest
	b.sendQueue = append(b.sendQueue, &sendItem{
		dest:         dest,
		destIndex:    destIndex,
		msg:          msg,
		completionMS: b.fx.t + b.networkLatencyMS/2,
		cb:           cb,
	})
	return nil
}

// RegisterRecvCB stores the callback the step engine invokes on delivery.
func (b *IOBackend) RegisterRecvCB(cb RecvCallback) {
	b.recvCB = cb
}

// Tick arms the periodic timer. Calling it again re-arms from the current
// virtual time, which scenario drivers rely on to push a server's timeout
// to an effectively-infinite value during elect().
func (b *IOBackend) Tick(cb TickCallback, periodMS uint64) {
	b.tick = tickTimer{
		armed:      true,
		period:     periodMS,
		nextExpiry: b.fx.t + periodMS,
		cb:         cb,
	}
}

func (b *IOBackend) PersistTerm(term uint64)          { b.term = term }
func (b *IOBackend) PersistVote(vote raft.ServerID)   { b.votedFor = vote }
func (b *IOBackend) PersistSnapshot(s *Snapshot)      { b.snapshot = s }
func (b *IOBackend) PersistEntries(entries []Entry) {
	b.log = append([]Entry(nil), entries...)
}

func (b *IOBackend) CurrentTerm() uint64         { return b.term }
func (b *IOBackend) VotedFor() raft.ServerID     { return b.votedFor }
func (b *IOBackend) LogEntries() []Entry         { return b.log }
func (b *IOBackend) LatestSnapshot() *Snapshot   { return b.snapshot }
func (b *IOBackend) Time() uint64                { return b.fx.t }
func (b *IOBackend) NSend(t MessageType) uint64  { return b.nSend[t] }
func (b *IOBackend) NRecv(t MessageType) uint64  { return b.nRecv[t] }

// appendEntry is a synchronous test-side helper used by set_entries/add_entry.
func (b *IOBackend) appendEntry(e Entry) {
	b.log = append(b.log, e)
}

func (b *IOBackend) setEntries(entries []Entry) {
	b.log = append([]Entry(nil), entries...)
}
