package mkmx

import (
	"github.com/sigurn/crc8"
)

// CRC computes the frame checksum one byte at a time.
type CRC interface {
	Update(acc, b byte) byte
}

// CRCFunc is func type of CRC.
type CRCFunc func(acc, b byte) byte

// Update implements CRC.
func (f CRCFunc) Update(acc, b byte) byte {
	return f(acc, b)
}

var crc8Table = crc8.MakeTable(crc8.CRC8)

type crc8CCITT struct{}

func (crc8CCITT) Update(acc, b byte) byte {
	buf := [1]byte{b}
	return crc8.Update(acc, buf[:], crc8Table)
}

// CRC8 is CRC-8/CCITT: polynomial 0x07, no reflection, no final xor.
var CRC8 CRC = crc8CCITT{}

// Checksum folds crc over data starting from zero.
func Checksum(crc CRC, data ...[]byte) byte {
	var acc byte
	for _, p := range data {
		for _, b := range p {
			acc = crc.Update(acc, b)
		}
	}
	return acc
}
