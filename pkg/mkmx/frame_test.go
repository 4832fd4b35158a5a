package mkmx

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// crc8Bitwise is the bit-by-bit CRC-8/CCITT update used on the devices.
func crc8Bitwise(acc, b byte) byte {
	data := acc ^ b
	for i := 0; i < 8; i++ {
		if data&0x80 != 0 {
			data = data<<1 ^ 0x07
		} else {
			data <<= 1
		}
	}
	return data
}

func TestCRC8(t *testing.T) {
	for acc := 0; acc < 256; acc++ {
		for b := 0; b < 256; b++ {
			require.Equal(t, crc8Bitwise(byte(acc), byte(b)), CRC8.Update(byte(acc), byte(b)))
		}
	}
	require.Equal(t, byte(0xF4), Checksum(CRC8, []byte("123456789")))
	require.Equal(t, byte(0x25), Checksum(CRC8, []byte{0x42, 0x99}, []byte{0x01, 0xDE}))
	require.Zero(t, Checksum(CRC8))
}

func TestFrame(t *testing.T) {
	testCases := []struct {
		name   string
		frame  Frame
		expect []byte
	}{
		{"no data", Frame{Address: 0x42, Command: 0x10}, []byte{SOF1, SOF2, 0x42, 0x10, 0x00}},
		{"one byte", Frame{Address: 0x42, Command: 0x99, Payload: []byte{0xDE}}, []byte{SOF1, SOF2, 0x42, 0x99, 0x01, 0xDE}},
		{"text", Frame{Address: 0x00, Command: CmdText, Payload: []byte("1234")}, []byte{SOF1, SOF2, 0x00, 't', 0x04, '1', '2', '3', '4'}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.frame
			f.Checksum = f.Sum(CRC8)
			expect := append(tc.expect, Checksum(CRC8, tc.expect[2:]))
			require.Equal(t, expect, f.Bytes())
			require.Equal(t, len(expect), f.Len())
			require.True(t, f.Valid(CRC8))

			var buf bytes.Buffer
			n, err := f.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, expect, buf.Bytes())
			require.Equal(t, int64(len(expect)), n)

			parsed, err := Unmarshal(expect, CRC8)
			require.NoError(t, err)
			require.Equal(t, f.Address, parsed.Address)
			require.Equal(t, f.Command, parsed.Command)
			require.Equal(t, len(f.Payload), len(parsed.Payload))
		})
	}
}

func TestNewFrame(t *testing.T) {
	f, err := NewFrame(0x42, 0x99, []byte{0xDE}, CRC8)
	require.NoError(t, err)
	require.Equal(t, byte(0x25), f.Checksum)
	require.Equal(t, []byte{SOF1, SOF2, 0x42, 0x99, 0x01, 0xDE, 0x25}, f.Bytes())

	_, err = NewFrame(0x42, 0x99, make([]byte, MaxWirePayload+1), CRC8)
	require.Equal(t, ErrPayloadTooLong, err)

	f, err = NewFrame(0x42, 0x99, make([]byte, MaxWirePayload), CRC8)
	require.NoError(t, err)
	require.Equal(t, MaxWirePayload+Overhead, f.Len())

	f, err = NewTextFrame(0x00, "1234", CRC8)
	require.NoError(t, err)
	require.Equal(t, CmdText, f.Command)
	require.Equal(t, []byte("1234"), f.Payload)
}

func TestUnmarshalErrors(t *testing.T) {
	good := []byte{SOF1, SOF2, 0x42, 0x99, 0x01, 0xDE, 0x25}

	_, err := Unmarshal(good[:5], CRC8)
	require.Equal(t, ErrShortFrame, err)

	bad := append([]byte{}, good...)
	bad[1] = 0x00
	_, err = Unmarshal(bad, CRC8)
	require.Equal(t, ErrBadSOF, err)

	_, err = Unmarshal(append(append([]byte{}, good...), 0x00), CRC8)
	require.Equal(t, ErrLengthMismatch, err)

	bad = append([]byte{}, good...)
	bad[6] = 0x24
	_, err = Unmarshal(bad, CRC8)
	require.True(t, errors.Is(err, ErrChecksum))
	var csErr *ChecksumError
	require.True(t, errors.As(err, &csErr))
	require.Equal(t, byte(0x25), csErr.Want)
	require.Equal(t, byte(0x24), csErr.Got)
}

func TestFrameString(t *testing.T) {
	f := &Frame{Address: 0x42, Command: 0x99, Payload: []byte{0xDE, 0x01}, Checksum: 0x25}
	require.Equal(t, "addr=42 cmd=99 len=2 payload=DE 01 crc=25", f.String())
	f.Payload = nil
	require.False(t, strings.Contains(f.String(), "payload"))
}
