package ssp

import "time"

// lockTimeout bounds every acquisition of the engine's shared-table lock,
// per spec.md §5 ("mutex acquisitions use a bounded wait, default 5s").
const lockTimeout = 5 * time.Second

// lastReceived is LastReceived[port] from spec.md §3: the (transId, crc)
// of the last DATA packet dispatched to a listener on that port, used to
// drop duplicates.
type lastReceived struct {
	transId byte
	crc     uint16
	valid   bool
}

// Engine is the protocol engine of spec.md §4.2: per-port send queues,
// transaction-ID allocation, the retry/timeout clock, ACK/NAK synthesis,
// duplicate suppression, and listener dispatch. It wraps a framer for all
// wire-level concerns.
type Engine struct {
	cfg    Config
	host   HostServices
	framer *framer
	lock   Lock
	errs   errorState

	queues    map[PortId]*sendQueue
	lastRecv  map[PortId]*lastReceived
	listeners map[byte]listenerEntry
	nextTrans byte
}

// NewEngine constructs an Engine. No ports are open yet; call OpenPort for
// each physical link before Tick starts driving it.
func NewEngine(cfg Config, host HostServices) *Engine {
	return &Engine{
		cfg:       cfg,
		host:      host,
		framer:    newFramer(cfg),
		lock:      host.NewLock(),
		queues:    make(map[PortId]*sendQueue),
		lastRecv:  make(map[PortId]*lastReceived),
		listeners: make(map[byte]listenerEntry),
	}
}

// SetErrorHandler installs a handler invoked, in addition to normal
// returns, for every surfaced SspErr.
func (e *Engine) SetErrorHandler(h ErrorHandler) {
	e.errs.setHandler(h)
}

// LastError returns the most recently surfaced SspErr.
func (e *Engine) LastError() SspErr {
	return e.errs.lastError()
}

func (e *Engine) withLock(fn func()) SspErr {
	if !e.lock.TryLock(lockTimeout) {
		return e.errs.report(SoftwareFault)
	}
	defer e.lock.Unlock()
	fn()
	return Success
}

// OpenPort opens transport t as physical port, and equips it with a send
// queue. Idempotent constructions (calling twice) are treated as
// PortOpenFailed via the framer's own bookkeeping.
func (e *Engine) OpenPort(port PortId, t Transport) SspErr {
	var result SspErr
	if lockErr := e.withLock(func() {
		result = e.framer.openPort(port, t)
		if result == Success {
			e.queues[port] = newSendQueue(e.cfg.MaxMessages)
			e.lastRecv[port] = &lastReceived{}
		}
	}); lockErr != Success {
		return lockErr
	}
	if result != Success {
		return e.errs.report(result)
	}
	return Success
}

// ClosePort tears down port, abandoning any queued SendEntries without
// completion callbacks (spec.md §3's Term semantics, scoped per port).
func (e *Engine) ClosePort(port PortId) SspErr {
	var result SspErr
	e.withLock(func() {
		result = e.framer.closePort(port)
		delete(e.queues, port)
		delete(e.lastRecv, port)
	})
	if result != Success {
		return e.errs.report(result)
	}
	return Success
}

// Term abandons all ports and queued work. There is no completion
// callback for abandoned messages.
func (e *Engine) Term() {
	e.withLock(func() {
		for port := range e.queues {
			e.framer.closePort(port)
		}
		e.queues = make(map[PortId]*sendQueue)
		e.lastRecv = make(map[PortId]*lastReceived)
		e.listeners = make(map[byte]listenerEntry)
	})
}

func (e *Engine) OpenSocket(port PortId, socketId byte) SspErr {
	var result SspErr
	e.withLock(func() { result = e.framer.openSocket(port, socketId) })
	if result != Success {
		return e.errs.report(result)
	}
	return Success
}

func (e *Engine) CloseSocket(socketId byte) SspErr {
	var result SspErr
	e.withLock(func() {
		result = e.framer.closeSocket(socketId)
		delete(e.listeners, socketId)
	})
	if result != Success {
		return e.errs.report(result)
	}
	return Success
}

// RegisterListener installs a listener on socketId. Fails DuplicateListener
// if one is already present, SocketNotOpen if the socket hasn't been
// opened on any port.
func (e *Engine) RegisterListener(socketId byte, cb ListenerFunc, user interface{}) SspErr {
	if cb == nil {
		return e.errs.report(BadArgument)
	}
	var result SspErr
	e.withLock(func() {
		if !e.framer.isSocketOpen(socketId) {
			result = SocketNotOpen
			return
		}
		if _, exists := e.listeners[socketId]; exists {
			result = DuplicateListener
			return
		}
		e.listeners[socketId] = listenerEntry{cb: cb, user: user}
		result = Success
	})
	if result != Success {
		return e.errs.report(result)
	}
	return Success
}

// Send is the single-chunk convenience wrapper around SendMultiple.
func (e *Engine) Send(srcSocket, dstSocket byte, data []byte) SspErr {
	return e.SendMultiple(srcSocket, dstSocket, [][]byte{data})
}

// SendMultiple copies one or more disjoint payload chunks (total <=
// Config.MaxBody()) into a freshly allocated SendEntry, stamps it with
// the next transId, and appends it to srcSocket's port queue.
func (e *Engine) SendMultiple(srcSocket, dstSocket byte, chunks [][]byte) SspErr {
	if len(chunks) == 0 {
		return e.errs.report(BadArgument)
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total > e.cfg.MaxBody() {
		return e.errs.report(DataSizeTooLarge)
	}

	var result SspErr
	var transport Transport
	e.withLock(func() {
		p, ok := e.framer.portForSocket(srcSocket)
		if !ok {
			result = BadSocketId
			return
		}
		q := e.queues[p]
		if q == nil {
			result = PortNotOpen
			return
		}
		if q.len() >= e.cfg.MaxMessages {
			result = QueueFull
			return
		}

		body := make([]byte, 0, total)
		for _, c := range chunks {
			body = append(body, c...)
		}

		transId := e.nextTrans
		e.nextTrans++

		entry := &SendEntry{
			Packet: Packet{Header: Header{
				DestId: dstSocket, SrcId: srcSocket, Type: MsgData,
				BodySize: byte(total), TransId: transId,
			}, Body: body},
			state: stateSend,
		}
		result = q.push(entry)
		if result != Success {
			return
		}
		transport, _ = e.framer.transportFor(p)
	})
	if result != Success {
		return e.errs.report(result)
	}
	if transport != nil {
		transport.PowerSave(false)
	}
	return Success
}

// SendQueueLen reads port's queue length under the shared lock, since a
// concurrent SendMultiple may be pushing to it from another goroutine.
func (e *Engine) SendQueueLen(port PortId) int {
	n := 0
	e.withLock(func() {
		if q, ok := e.queues[port]; ok {
			n = q.len()
		}
	})
	return n
}

func (e *Engine) RecvQueueEmpty(port PortId) bool {
	empty := true
	e.withLock(func() {
		if t, err := e.framer.transportFor(port); err == Success {
			empty = t.IsRecvQueueEmpty()
		}
	})
	return empty
}

// Tick drains receive input and advances send state for every open port,
// then updates the transport power-save hint. Listeners run synchronously
// from within this call; they must not call Tick reentrantly.
func (e *Engine) Tick() {
	allEmpty := true
	for port := range e.queues {
		e.processReceive(port)
		e.processSend(port)
		e.withLock(func() {
			if q := e.queues[port]; q != nil && q.len() > 0 {
				allEmpty = false
			}
		})
	}
	for port := range e.queues {
		if t, err := e.framer.transportFor(port); err == Success {
			t.PowerSave(allEmpty)
		}
	}
}

func (e *Engine) processSend(port PortId) {
	var transport Transport
	var entry *SendEntry
	var toNotifySocket byte
	var notifyErr SspErr
	notify := false

	e.withLock(func() {
		q := e.queues[port]
		if q == nil {
			return
		}
		head := q.head()
		if head == nil || head.state != stateSend {
			return
		}
		head.retries++
		if head.retries > e.cfg.MaxRetries {
			q.popHead()
			toNotifySocket = head.Packet.Header.SrcId
			notifyErr = SendRetriesFailed
			notify = true
			return
		}
		entry = head
		transport, _ = e.framer.transportFor(port)
	})

	if notify {
		e.errs.report(notifyErr)
		e.dispatch(toNotifySocket, nil, Send, notifyErr)
		return
	}
	if entry == nil || transport == nil {
		return
	}

	if err := transport.Send(Encode(entry.Packet)); err != nil {
		logger := e.cfg.log()
		logger.Warn().Uint8("port", uint8(port)).Msg("ssp: transport send failed, will retry")
		return
	}
	e.withLock(func() {
		entry.state = stateAwaitAck
		entry.lastSendTick = e.host.TickMillis()
	})
}

func (e *Engine) processReceive(port PortId) {
	if t, err := e.framer.transportFor(port); err == Success && t.IsRecvQueueEmpty() {
		e.checkTimeouts(port)
		return
	}

	outcome, pkt := e.framer.pollReceive(port, e.cfg.RecvTimeout)
	switch outcome {
	case Success:
		e.handleData(port, pkt)
	case CorruptedPacket, PartialHeaderValid:
		if pkt != nil && pkt.Header.Type == MsgData {
			e.sendControl(port, pkt.Header, MsgNak)
		}
		e.errs.report(outcome)
	case BadSignature, PacketTooLarge, BadHeaderChecksum, ParseError, PartialPacket:
		if outcome != PartialPacket {
			e.errs.report(outcome)
		}
	case BadSocketId, SocketNotOpen:
		if pkt != nil && pkt.Header.Type == MsgData {
			e.sendControl(port, pkt.Header, MsgNak)
		}
		e.errs.report(outcome)
	}

	e.checkTimeouts(port)
}

// handleData processes a fully valid, correctly routed packet: ACK/NAK
// matching for control types, or ACK + dedupe + dispatch for DATA.
func (e *Engine) handleData(port PortId, pkt *Packet) {
	switch pkt.Header.Type {
	case MsgAck:
		var socket byte
		var notify bool
		e.withLock(func() {
			q := e.queues[port]
			entry := q.find(pkt.Header)
			if entry == nil {
				return
			}
			q.remove(entry)
			socket = entry.Packet.Header.SrcId
			notify = true
		})
		if notify {
			e.dispatch(socket, nil, Send, Success)
		}
		return

	case MsgNak:
		e.withLock(func() {
			q := e.queues[port]
			entry := q.find(pkt.Header)
			if entry != nil {
				entry.state = stateSend
			}
		})
		return

	case MsgData:
		if _, ok := e.listener(pkt.Header.DestId); !ok {
			e.sendControl(port, pkt.Header, MsgNak)
			return
		}
		e.sendControl(port, pkt.Header, MsgAck)

		dup := false
		e.withLock(func() {
			lr := e.lastRecv[port]
			if lr.valid && lr.transId == pkt.Header.TransId && lr.crc == pkt.Crc {
				dup = true
				return
			}
			e.lastRecv[port] = &lastReceived{transId: pkt.Header.TransId, crc: pkt.Crc, valid: true}
		})
		if dup {
			return
		}
		e.dispatch(pkt.Header.DestId, pkt.Body, Receive, Success)
	}
}

// listener looks up socketId's listener under the shared lock, via
// withLock so a TryLock timeout reports SoftwareFault and never proceeds
// as if the lock had been acquired.
func (e *Engine) listener(socketId byte) (listenerEntry, bool) {
	var l listenerEntry
	var ok bool
	e.withLock(func() {
		l, ok = e.listeners[socketId]
	})
	return l, ok
}

// dispatch calls the socket's listener outside the shared-table lock, per
// spec.md §5's "listener callbacks are never invoked while holding the
// mutex."
func (e *Engine) dispatch(socketId byte, data []byte, kind DataType, err SspErr) {
	l, ok := e.listener(socketId)
	if !ok {
		return
	}
	l.cb(socketId, data, kind, err, l.user)
}

func (e *Engine) sendControl(port PortId, in Header, kind MsgType) {
	reply := Packet{Header: Header{
		DestId: in.SrcId, SrcId: in.DestId, Type: kind, BodySize: 0, TransId: in.TransId,
	}}
	if err := e.framer.send(port, reply); err != Success {
		e.errs.report(err)
	}
}

// checkTimeouts resets every AwaitAck entry on port whose ACK wait has
// expired back to Send, regardless of queue position (spec.md §4.2: only
// the head can then progress, but every position is checked).
func (e *Engine) checkTimeouts(port PortId) {
	now := e.host.TickMillis()
	e.withLock(func() {
		q := e.queues[port]
		if q == nil {
			return
		}
		for _, entry := range q.entries {
			if entry.state != stateAwaitAck {
				continue
			}
			if now-entry.lastSendTick > uint32(e.cfg.AckTimeout.Milliseconds()) {
				entry.state = stateSend
			}
		}
	})
}
