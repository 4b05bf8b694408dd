package raftsim

import (
	"math"

	"github.com/cuemby/raftsim/pkg/metrics"
)

const infiniteMS = math.MaxUint64

// Step advances virtual time to the next scheduled event across the whole
// cluster and dispatches exactly one callback, under the total ordering
// from §4.E. It returns the dispatched event, or ErrNoPendingEvents when
// nothing is left to advance to. A fatal *InvariantViolation found by the
// safety monitor is not returned: Step logs it, passes the event to the
// hook, and panics with it.
func (f *Fixture) Step() (*Event, error) {
	timer := metrics.NewTimer()

	ev, err := f.dispatchOne()
	if err != nil {
		timer.ObserveDuration(metrics.StepDuration)
		return nil, err
	}

	metrics.StepsTotal.WithLabelValues(ev.Type.String()).Inc()
	metrics.VirtualTimeMS.Set(float64(f.t))
	timer.ObserveDuration(metrics.StepDuration)

	if err := f.checkSafety(); err != nil {
		metrics.InvariantViolationsTotal.WithLabelValues(err.Kind.String()).Inc()
		f.logger.Error().Str("kind", err.Kind.String()).Msg(err.Message)
		if f.hook != nil {
			f.hook(f, *ev)
		}
		panic(err)
	}

	f.snapshotLeaderState()
	f.updateAliveGauge()

	f.logger.Debug().
		Uint64("t", f.t).
		Int("server_index", ev.ServerIndex).
		Str("type", ev.Type.String()).
		Msg("step dispatched")

	if f.hook != nil {
		f.hook(f, *ev)
	}

	f.lastEvent = *ev
	return ev, nil
}

// dispatchOne implements Phase 1 and Phase 2 of §4.E, returning the single
// event dispatched.
func (f *Fixture) dispatchOne() (*Event, error) {
	sendSrv, sendIdx, send := f.earliestSend()
	diskT, diskSrv := f.earliestDisk()
	netT, netSrv := f.earliestNet()
	tickT, tickSrv := f.earliestTick()

	phase2T := minOf(diskT, netT, tickT)

	if send != nil && send.completionMS <= phase2T {
		f.t = send.completionMS
		return f.dispatchSend(sendSrv, sendIdx, send), nil
	}

	if phase2T == infiniteMS {
		return nil, ErrNoPendingEvents
	}
	f.t = phase2T

	// lowest server_index first; TICK > DISK > NETWORK at that server.
	for i := 0; i < f.n; i++ {
		if tickSrv == i && tickT == phase2T {
			return f.dispatchTick(i), nil
		}
		if diskSrv == i && diskT == phase2T {
			return f.dispatchDisk(i), nil
		}
		if netSrv == i && netT == phase2T {
			return f.dispatchNet(i), nil
		}
	}
	return nil, ErrNoPendingEvents
}

func (f *Fixture) earliestSend() (serverIdx int, queueIdx int, item *sendItem) {
	best := infiniteMS
	serverIdx, queueIdx = -1, -1
	for i, s := range f.servers {
		for qi, it := range s.IO.sendQueue {
			if it.completionMS < best {
				best = it.completionMS
				serverIdx, queueIdx, item = i, qi, it
			}
		}
	}
	return serverIdx, queueIdx, item
}

func (f *Fixture) earliestDisk() (t uint64, serverIdx int) {
	t, serverIdx = infiniteMS, -1
	for i, s := range f.servers {
		for _, req := range s.IO.appendQueue {
			if req.completionMS < t {
				t, serverIdx = req.completionMS, i
			}
		}
	}
	return t, serverIdx
}

func (f *Fixture) earliestNet() (t uint64, serverIdx int) {
	t, serverIdx = infiniteMS, -1
	for i, s := range f.servers {
		for _, it := range s.IO.transit {
			if it.deliveryMS < t {
				t, serverIdx = it.deliveryMS, i
			}
		}
	}
	return t, serverIdx
}

func (f *Fixture) earliestTick() (t uint64, serverIdx int) {
	t, serverIdx = infiniteMS, -1
	for i, s := range f.servers {
		if !s.Alive || !s.IO.tick.armed {
			continue
		}
		if s.IO.tick.nextExpiry < t {
			t, serverIdx = s.IO.tick.nextExpiry, i
		}
	}
	return t, serverIdx
}

func (f *Fixture) dispatchSend(serverIdx, queueIdx int, item *sendItem) *Event {
	src := f.servers[serverIdx]
	src.IO.sendQueue = append(src.IO.sendQueue[:queueIdx], src.IO.sendQueue[queueIdx+1:]...)

	if item.cb != nil {
		item.cb(nil)
	}
	src.IO.nSend[item.msg.Type]++

	dst := f.servers[item.destIndex]
	edge := f.conn.state(serverIdx, item.destIndex)
	if edge != EdgeDisconnected && dst.Alive && src.Alive {
		dst.IO.transit = append(dst.IO.transit, &transitItem{
			from:       src.ID,
			fromIndex:  serverIdx,
			msg:        item.msg,
			deliveryMS: item.completionMS + src.IO.networkLatencyMS/2,
		})
	}
	return &Event{ServerIndex: serverIdx, Type: EventNetwork}
}

func (f *Fixture) dispatchTick(i int) *Event {
	s := f.servers[i]
	cb := s.IO.tick.cb
	s.IO.tick.nextExpiry += s.IO.tick.period
	if cb != nil {
		cb()
	}
	return &Event{ServerIndex: i, Type: EventTick}
}

func (f *Fixture) dispatchDisk(i int) *Event {
	s := f.servers[i]
	var req *appendRequest
	idx := -1
	for qi, r := range s.IO.appendQueue {
		if r.completionMS == f.t {
			req, idx = r, qi
			break
		}
	}
	s.IO.appendQueue = append(s.IO.appendQueue[:idx], s.IO.appendQueue[idx+1:]...)
	if req.cb != nil {
		if req.fail {
			req.cb(newIOFault(i))
		} else {
			req.cb(nil)
		}
	}
	return &Event{ServerIndex: i, Type: EventDisk}
}

func (f *Fixture) dispatchNet(i int) *Event {
	dst := f.servers[i]
	var item *transitItem
	idx := -1
	for qi, it := range dst.IO.transit {
		if it.deliveryMS == f.t {
			item, idx = it, qi
			break
		}
	}
	dst.IO.transit = append(dst.IO.transit[:idx], dst.IO.transit[idx+1:]...)

	edge := f.conn.state(item.fromIndex, i)
	if edge == EdgeConnected && dst.Alive {
		dst.IO.nRecv[item.msg.Type]++
		if dst.IO.recvCB != nil {
			dst.IO.recvCB(item.from, item.msg)
		}
	}
	// EdgeSaturated or a destination that died in flight: silent drop,
	// still counted as the step's dispatched event per §9 open question 1.
	return &Event{ServerIndex: i, Type: EventNetwork}
}

func minOf(vals ...uint64) uint64 {
	m := infiniteMS
	for _, v := range vals {
		if v < m {
			m = v
		}
	}
	return m
}

func (f *Fixture) updateAliveGauge() {
	n := 0
	for _, s := range f.servers {
		if s.Alive {
			n++
		}
	}
	metrics.ServersAlive.Set(float64(n))
}
