package mkmx

import (
	"fmt"
	"io"
	"strings"
)

// Start of frame markers.
const (
	SOF1 byte = 0x5A
	SOF2 byte = 0xA5
)

const (
	// MaxWirePayload is the largest payload the length field can declare.
	MaxWirePayload = 0xff
	// DefaultMaxPayload is the largest payload received for the local address.
	DefaultMaxPayload = 32
	// Overhead is the number of bytes a frame adds around its payload.
	Overhead = 6
)

// CmdText is the command carrying a debug text message.
const CmdText byte = 't'

// Frame is the unit of protocol exchange.
type Frame struct {
	Address  byte
	Command  byte
	Payload  []byte
	Checksum byte
}

// NewFrame creates a Frame with the checksum computed by crc.
func NewFrame(addr, cmd byte, payload []byte, crc CRC) (*Frame, error) {
	if len(payload) > MaxWirePayload {
		return nil, ErrPayloadTooLong
	}
	f := &Frame{Address: addr, Command: cmd, Payload: payload}
	f.Checksum = f.Sum(crc)
	return f, nil
}

// NewTextFrame creates a CmdText frame carrying text.
func NewTextFrame(addr byte, text string, crc CRC) (*Frame, error) {
	return NewFrame(addr, CmdText, []byte(text), crc)
}

// Sum calculates the checksum over address, command, length and payload.
func (f *Frame) Sum(crc CRC) byte {
	acc := crc.Update(0, f.Address)
	acc = crc.Update(acc, f.Command)
	acc = crc.Update(acc, byte(len(f.Payload)))
	for _, b := range f.Payload {
		acc = crc.Update(acc, b)
	}
	return acc
}

// Valid checks the stored checksum.
func (f *Frame) Valid(crc CRC) bool {
	return f.Sum(crc) == f.Checksum
}

// Len returns the encoded size.
func (f *Frame) Len() int {
	return len(f.Payload) + Overhead
}

// AppendTo appends encoded bytes to dst.
func (f *Frame) AppendTo(dst []byte) []byte {
	dst = append(dst, SOF1, SOF2, f.Address, f.Command, byte(len(f.Payload)))
	dst = append(dst, f.Payload...)
	return append(dst, f.Checksum)
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() []byte {
	return f.AppendTo(make([]byte, 0, f.Len()))
}

// WriteTo writes encoded bytes.
func (f *Frame) WriteTo(w io.Writer) (n int64, err error) {
	written, err := w.Write(f.Bytes())
	return int64(written), err
}

// String formats the frame for display.
func (f *Frame) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "addr=%02X cmd=%02X len=%d", f.Address, f.Command, len(f.Payload))
	if len(f.Payload) > 0 {
		sb.WriteString(" payload=")
		for n, b := range f.Payload {
			if n > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%02X", b)
		}
	}
	fmt.Fprintf(&sb, " crc=%02X", f.Checksum)
	return sb.String()
}

// Unmarshal parses exactly one encoded frame regardless of its address.
// The returned payload aliases data.
func Unmarshal(data []byte, crc CRC) (*Frame, error) {
	if len(data) < Overhead {
		return nil, ErrShortFrame
	}
	if data[0] != SOF1 || data[1] != SOF2 {
		return nil, ErrBadSOF
	}
	if l := int(data[4]); l+Overhead != len(data) {
		return nil, ErrLengthMismatch
	}
	f := &Frame{
		Address:  data[2],
		Command:  data[3],
		Payload:  data[5 : len(data)-1],
		Checksum: data[len(data)-1],
	}
	if sum := f.Sum(crc); sum != f.Checksum {
		return nil, &ChecksumError{Want: sum, Got: f.Checksum}
	}
	return f, nil
}
