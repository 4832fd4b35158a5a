package link

import "errors"

var (
	// ErrOffline indicates the link isn't running.
	ErrOffline = errors.New("link offline")
	// ErrTxBufferFull indicates the transmit ring can't take the whole frame.
	ErrTxBufferFull = errors.New("tx buffer full")
)
