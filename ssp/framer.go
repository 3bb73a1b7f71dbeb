package ssp

import "time"

const recvChunkSize = 256

// portState bundles everything the framer tracks for one open physical
// port: its transport, its in-flight parser, and any bytes read off the
// wire that weren't consumed by the packet that just completed.
type portState struct {
	transport Transport
	parser    *parser
	pending   []byte
}

// framer owns the wire-level concerns spec.md §4.1 assigns the Framer:
// opening ports, binding sockets to ports, encoding outgoing packets, and
// running the byte-at-a-time receive parser. It does not know about send
// queues, retries, or listeners; that is the protocol engine's job.
type framer struct {
	cfg Config

	ports  map[PortId]*portState
	socket map[byte]PortId // socketId -> bound PortId; absent means unbound
}

func newFramer(cfg Config) *framer {
	return &framer{
		cfg:    cfg,
		ports:  make(map[PortId]*portState),
		socket: make(map[byte]PortId),
	}
}

func (f *framer) openPort(port PortId, t Transport) SspErr {
	if port == InvalidPort || t == nil {
		return BadArgument
	}
	if _, open := f.ports[port]; open {
		return PortOpenFailed
	}
	if err := t.Open(); err != nil {
		return PortOpenFailed
	}
	f.ports[port] = &portState{
		transport: t,
		parser:    newParser(f.cfg.MaxBody()),
	}
	return Success
}

func (f *framer) closePort(port PortId) SspErr {
	ps, ok := f.ports[port]
	if !ok {
		return PortNotOpen
	}
	for sock, p := range f.socket {
		if p == port {
			delete(f.socket, sock)
		}
	}
	delete(f.ports, port)
	if err := ps.transport.Close(); err != nil {
		return SendFailure
	}
	return Success
}

func (f *framer) isPortOpen(port PortId) bool {
	_, ok := f.ports[port]
	return ok
}

func (f *framer) openSocket(port PortId, socketId byte) SspErr {
	if _, ok := f.ports[port]; !ok {
		return PortNotOpen
	}
	if int(socketId) >= f.cfg.SocketMax {
		return BadSocketId
	}
	if _, bound := f.socket[socketId]; bound {
		return SocketAlreadyOpen
	}
	f.socket[socketId] = port
	return Success
}

// closeSocket unbinds socketId. Idempotent: closing an already-closed
// socket is not an error, per spec.md.
func (f *framer) closeSocket(socketId byte) SspErr {
	delete(f.socket, socketId)
	return Success
}

func (f *framer) isSocketOpen(socketId byte) bool {
	_, ok := f.socket[socketId]
	return ok
}

func (f *framer) portForSocket(socketId byte) (PortId, bool) {
	p, ok := f.socket[socketId]
	return p, ok
}

func (f *framer) transportFor(port PortId) (Transport, SspErr) {
	ps, ok := f.ports[port]
	if !ok {
		return nil, PortNotOpen
	}
	return ps.transport, Success
}

// send encodes pkt and writes it to port's transport.
func (f *framer) send(port PortId, pkt Packet) SspErr {
	ps, ok := f.ports[port]
	if !ok {
		return PortNotOpen
	}
	if err := ps.transport.Send(Encode(pkt)); err != nil {
		return SendFailure
	}
	return Success
}

// pollReceive drives port's parser with bytes read off its transport
// until either a packet finishes (successfully or not) or the transport
// runs dry. It may issue multiple Transport.Recv calls in one invocation
// but returns at most one parsed outcome. Any bytes read past the byte
// that completed a packet are held in ps.pending for the next call.
func (f *framer) pollReceive(port PortId, timeout time.Duration) (SspErr, *Packet) {
	ps, ok := f.ports[port]
	if !ok {
		return PortNotOpen, nil
	}

	buf := ps.pending
	ps.pending = nil
	idx := 0

	for {
		if idx >= len(buf) {
			chunk := make([]byte, recvChunkSize)
			n, err := ps.transport.Recv(chunk, timeout)
			if err != nil {
				return ParseError, nil
			}
			if n == 0 {
				if ps.parser.headerValid() {
					return PartialHeaderValid, ps.parser.snapshot()
				}
				return PartialPacket, nil
			}
			buf = chunk[:n]
			idx = 0
		}

		b := buf[idx]
		idx++
		outcome := ps.parser.feed(b)
		if outcome == PartialPacket {
			continue
		}

		var pkt *Packet
		if outcome == Success || outcome == CorruptedPacket || outcome == PartialHeaderValid {
			pkt = ps.parser.snapshot()
		}
		ps.parser.reset()

		if idx < len(buf) {
			ps.pending = append([]byte(nil), buf[idx:]...)
		}

		if outcome == Success {
			outcome = f.routeSuccess(pkt)
		}
		return outcome, pkt
	}
}

// routeSuccess applies the destId routing tie-break described in
// spec.md §4.1: a fully valid header+CRC still resolves to BadSocketId or
// SocketNotOpen instead of Success when the destination isn't a bound
// socket on this port's framer.
func (f *framer) routeSuccess(pkt *Packet) SspErr {
	if int(pkt.Header.DestId) >= f.cfg.SocketMax {
		return BadSocketId
	}
	if _, bound := f.socket[pkt.Header.DestId]; !bound {
		return SocketNotOpen
	}
	return Success
}
