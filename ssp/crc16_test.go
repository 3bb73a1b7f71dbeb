package ssp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrc16TableMatchesBitwiseLoop(t *testing.T) {
	data := []byte{0xBE, 0xEF, 0x01, 0x02, 0x00, 0x03, 0x04, 0x00, 'a', 'b', 'c'}

	table := crc16(data)

	// Bitwise reimplementation, independent of crc16Table, as a check
	// that the generated table matches the CRC-16/CCITT-FALSE definition
	// spec.md §4.3 requires (poly 0x1021, init 0xFFFF, no reflection).
	bitwise := uint16(0xFFFF)
	for _, b := range data {
		bitwise ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if bitwise&0x8000 != 0 {
				bitwise = (bitwise << 1) ^ crc16Poly
			} else {
				bitwise <<= 1
			}
		}
	}

	assert.Equal(t, bitwise, table)
}

func TestCrc16UpdateMatchesBulk(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 250, 251, 252}
	running := uint16(0xFFFF)
	for _, b := range data {
		running = crc16Update(running, b)
	}
	assert.Equal(t, crc16(data), running)
}
