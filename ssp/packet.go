package ssp

// Wire packet layout (spec.md §3), little-endian throughout:
//
//	offset  field      width
//	0       sig        2     0xBE 0xEF
//	2       destId     1
//	3       srcId      1
//	4       type       1     {DATA=0, ACK=1, NAK=2}
//	5       bodySize   1
//	6       transId    1
//	7       checksum   1     sum(bytes[0..6]) mod 256
//	8       body       N
//	8+N     crc        2     CRC-16 over bytes[0..7+N], init 0xFFFF

const (
	sig1 byte = 0xBE
	sig2 byte = 0xEF

	headerSize = 8
	footerSize = 2
)

// MsgType is the packet's type field.
type MsgType byte

const (
	MsgData MsgType = 0
	MsgAck  MsgType = 1
	MsgNak  MsgType = 2
)

// Header is the 8-byte SSP header, decoded into host fields.
type Header struct {
	DestId   byte
	SrcId    byte
	Type     MsgType
	BodySize byte
	TransId  byte
	Checksum byte
}

// Packet is one framed message: header, body, and its CRC-16 footer. It is
// the Go analogue of original_source's SspData/PacketBuffer, held as a
// plain value: the parser hands out a fresh copy per parsed frame, each
// SendEntry holds its own, and every ACK/NAK reply is built as a new Packet.
type Packet struct {
	Header Header
	Body   []byte
	Crc    uint16
}

// headerChecksum sums the first 7 header bytes (sig1, sig2, destId, srcId,
// type, bodySize, transId) mod 256.
func headerChecksum(h Header) byte {
	var sum byte
	sum += sig1
	sum += sig2
	sum += h.DestId
	sum += h.SrcId
	sum += byte(h.Type)
	sum += h.BodySize
	sum += h.TransId
	return sum
}

// Encode serializes p to the wire format, filling in the header checksum
// and CRC footer. The returned slice is freshly allocated.
func Encode(p Packet) []byte {
	n := len(p.Body)
	out := make([]byte, headerSize+n+footerSize)

	out[0] = sig1
	out[1] = sig2
	out[2] = p.Header.DestId
	out[3] = p.Header.SrcId
	out[4] = byte(p.Header.Type)
	out[5] = byte(n)
	out[6] = p.Header.TransId
	out[7] = headerChecksum(Header{
		DestId: p.Header.DestId, SrcId: p.Header.SrcId,
		Type: p.Header.Type, BodySize: byte(n), TransId: p.Header.TransId,
	})

	copy(out[headerSize:], p.Body)

	crc := crc16(out[:headerSize+n])
	out[headerSize+n] = byte(crc)
	out[headerSize+n+1] = byte(crc >> 8)
	return out
}
