package mkmx

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLong indicates the payload doesn't fit the length field.
	ErrPayloadTooLong = errors.New("payload too long")
	// ErrShortFrame indicates the data is shorter than the smallest frame.
	ErrShortFrame = errors.New("short frame")
	// ErrBadSOF indicates the data doesn't start with the SOF marker.
	ErrBadSOF = errors.New("bad start of frame")
	// ErrLengthMismatch indicates the length field disagrees with the data.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrChecksum indicates a checksum mismatch.
	ErrChecksum = errors.New("checksum mismatch")
)

// ChecksumError carries the checksums of a rejected frame.
type ChecksumError struct {
	Want byte
	Got  byte
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: want %02X, got %02X", e.Want, e.Got)
}

// Is matches ErrChecksum.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}
