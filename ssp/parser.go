package ssp

// pstate is the incremental receive parser's state, spec.md §4.1:
//
//	Sig1 -> Sig2 -> Dest -> Src -> Type -> BodySize -> TransId -> Checksum
//	-> Body(0..bodySize-1) -> Footer1 -> Footer2
type pstate int

const (
	pSig1 pstate = iota
	pSig2
	pDest
	pSrc
	pType
	pBodySize
	pTransId
	pChecksum
	pBody
	pFooter1
	pFooter2
)

// parser is the byte-at-a-time receive state machine. One instance is kept
// per open port so a packet that straddles two PollReceive calls (the
// transport ran dry mid-body) resumes correctly; spec.md §3 notes a
// single global parser is not *required*, only that port-wise separation
// isn't mandated by the original design. Keeping one per port avoids
// interleaving bytes from different links into the same in-flight packet.
type parser struct {
	maxBody int

	state pstate

	destId, srcId, bodySize, transId, checksum byte
	msgType                                    MsgType

	body    []byte
	bodyIdx int

	footer    [footerSize]byte
	footerIdx int

	crc uint16 // running CRC-16 accumulator over header+body

	history    [headerSize]byte
	historyLen int
	backtrack  bool
}

func newParser(maxBody int) *parser {
	p := &parser{maxBody: maxBody}
	p.reset()
	return p
}

// reset clears all in-flight packet state and returns the parser to
// Sig1, ready for the next frame. Called on every completion, success or
// failure, per spec.md §4.1.
func (p *parser) reset() {
	p.state = pSig1
	p.destId, p.srcId, p.bodySize, p.transId, p.checksum = 0, 0, 0, 0, 0
	p.msgType = 0
	p.body = p.body[:0]
	p.bodyIdx = 0
	p.footerIdx = 0
	p.crc = 0xFFFF
	p.historyLen = 0
}

// headerValid reports whether the 8-byte header has passed its checksum
// and the parser is now consuming body/footer bytes. Used to decide
// whether a dry Recv should report PartialPacket (nothing useful yet) or
// PartialHeaderValid (header is trustworthy, rest still in flight).
func (p *parser) headerValid() bool {
	return p.state == pBody || p.state == pFooter1 || p.state == pFooter2
}

func (p *parser) header() Header {
	return Header{
		DestId: p.destId, SrcId: p.srcId, Type: p.msgType,
		BodySize: p.bodySize, TransId: p.transId, Checksum: p.checksum,
	}
}

// snapshot builds the Packet visible to callers once a header is valid
// (used for PartialHeaderValid, CorruptedPacket, BadSocketId,
// SocketNotOpen, and Success outcomes). Body is copied so it survives the
// following reset; an empty body is returned as nil.
func (p *parser) snapshot() *Packet {
	var body []byte
	if len(p.body) > 0 {
		body = make([]byte, len(p.body))
		copy(body, p.body)
	}
	crc := uint16(p.footer[0]) | uint16(p.footer[1])<<8
	return &Packet{Header: p.header(), Body: body, Crc: crc}
}

func (p *parser) pushHistory(b byte) {
	if p.historyLen < headerSize {
		p.history[p.historyLen] = b
		p.historyLen++
	}
}

// feed processes a single incoming byte. It returns PartialPacket while
// more bytes are needed, or a terminal SspErr once a packet completes
// (successfully or otherwise). Callers must not call feed again after a
// terminal result without the parser having been reset (pollReceive does
// this automatically).
func (p *parser) feed(b byte) SspErr {
	switch p.state {
	case pSig1:
		if b != sig1 {
			return BadSignature
		}
		p.reset()
		p.pushHistory(b)
		p.state = pSig2
		return PartialPacket

	case pSig2:
		if b == sig1 {
			// Stutter: "BE BE EF" resynchronizes on the second BE.
			return PartialPacket
		}
		if b != sig2 {
			p.reset()
			return BadSignature
		}
		p.pushHistory(b)
		p.state = pDest
		return PartialPacket

	case pDest:
		p.destId = b
		p.pushHistory(b)
		p.state = pSrc
		return PartialPacket

	case pSrc:
		p.srcId = b
		p.pushHistory(b)
		p.state = pType
		return PartialPacket

	case pType:
		p.msgType = MsgType(b)
		p.pushHistory(b)
		p.state = pBodySize
		return PartialPacket

	case pBodySize:
		p.pushHistory(b)
		if int(b) > p.maxBody {
			p.reset()
			return PacketTooLarge
		}
		p.bodySize = b
		p.state = pTransId
		return PartialPacket

	case pTransId:
		p.transId = b
		p.pushHistory(b)
		p.state = pChecksum
		return PartialPacket

	case pChecksum:
		p.pushHistory(b)
		want := headerChecksum(Header{
			DestId: p.destId, SrcId: p.srcId, Type: p.msgType,
			BodySize: p.bodySize, TransId: p.transId,
		})
		if want != b {
			if !p.backtrack && p.tryBacktrack() {
				return PartialPacket
			}
			p.reset()
			return BadHeaderChecksum
		}
		p.checksum = b
		p.crc = crc16(p.headerBytes())
		p.body = p.body[:0]
		if p.bodySize == 0 {
			p.state = pFooter1
		} else {
			p.state = pBody
		}
		return PartialPacket

	case pBody:
		p.body = append(p.body, b)
		p.crc = crc16Update(p.crc, b)
		p.bodyIdx++
		if p.bodyIdx >= int(p.bodySize) {
			p.state = pFooter1
		}
		return PartialPacket

	case pFooter1:
		p.footer[0] = b
		p.footerIdx = 1
		p.state = pFooter2
		return PartialPacket

	case pFooter2:
		p.footer[1] = b
		gotCrc := uint16(p.footer[0]) | uint16(b)<<8
		if gotCrc != p.crc {
			// Header fields are kept so the caller can snapshot them and
			// address a NAK; the caller resets afterwards.
			return CorruptedPacket
		}
		// Header valid, CRC valid: socket routing is decided by the
		// caller (engine/framer), which may still report BadSocketId or
		// SocketNotOpen for this same completed parse.
		return Success
	}
	return ParseError
}

// headerBytes reconstructs the 8 on-wire header bytes from parsed fields,
// used to seed the running CRC accumulator once the header validates.
func (p *parser) headerBytes() []byte {
	return []byte{
		sig1, sig2, p.destId, p.srcId, byte(p.msgType), p.bodySize, p.transId, p.checksum,
	}
}

// tryBacktrack implements spec.md §4.1's single resynchronization attempt:
// on a header-checksum failure, re-examine the last sizeof(header) raw
// bytes starting at offset 1 (discarding the original, now-suspect sig1)
// to see whether a misaligned "0xBE 0xEF" lives inside them. Runs at most
// once per failed header attempt (guarded by p.backtrack). Returns true if
// replaying those bytes left the parser mid-packet (synchronized and
// waiting for more data); false if it found nothing and normal polling
// should resume from a clean Sig1 state.
func (p *parser) tryBacktrack() bool {
	replay := append([]byte(nil), p.history[1:p.historyLen]...)
	p.reset()
	p.backtrack = true
	defer func() { p.backtrack = false }()

	for _, b := range replay {
		if outcome := p.feed(b); outcome != PartialPacket && outcome != BadSignature {
			// Non-sync bytes (BadSignature) just keep the hunt going; any
			// other failure ends the one allowed backtrack attempt.
			if outcome == Success {
				return true
			}
			p.reset()
			return false
		}
	}
	// Ran out of replay bytes mid-header/mid-body: synchronized on a new
	// sig1 and waiting for live data to continue.
	return p.state != pSig1
}
