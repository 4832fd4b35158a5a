// Package mkmx implements the MKMX framing protocol for a half-duplex
// multi-drop serial bus.
package mkmx

// Every device on the bus observes every byte. A frame looks like:
//
//	[0x5A][0xA5][ADDR][CMD][LEN][LEN bytes of payload][CRC8]
//
// The checksum covers ADDR, CMD, LEN and the payload. The default checksum
// is CRC-8 with polynomial 0x07, no reflection and zero initial value.
//
// Decoder consumes one byte at a time and keeps at most one received frame
// addressed to the local device until the owner takes it. Frames for other
// addresses are only counted so the decoder can resynchronize at the next
// frame boundary; their bytes are never stored.
//
// There is no retransmission or acknowledgement at this layer. Anything
// malformed is dropped silently and the decoder waits for the next start
// of frame.
