// Package link drives the MKMX protocol over a byte stream.
package link

// A Link owns one mkmx.Decoder and one transmit ring. A background
// goroutine reads from the stream and the Run loop feeds every byte to the
// decoder, handing each completed frame to the FrameHandler before the
// decoder's ready slot is re-armed. Frames queued by Send are encoded into
// the transmit ring and written out whenever Run wakes up.
//
// Consumers running on other goroutines can use a Mailbox as the handler,
// which keeps at most one frame like the decoder's ready slot does.
