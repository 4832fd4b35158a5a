package mkmx

// State is the state of Decoder after consuming a byte.
type State int

const (
	StateIdle            State = iota // waiting for SOF1
	StateSOF1                         // got SOF1, waiting for SOF2
	StateSOF2                         // got SOF2, waiting for address
	StateAddr                         // local address matched, waiting for command
	StateCmd                          // waiting for payload length
	StatePayload                      // receiving payload
	StatePayloadDone                  // payload complete, waiting for checksum
	StateSkipAddr                     // foreign frame, waiting for command
	StateSkipCmd                      // foreign frame, waiting for payload length
	StateSkipPayload                  // foreign frame, counting payload
	StateSkipPayloadDone              // foreign frame, waiting for checksum
)

var stateNames = [...]string{
	StateIdle:            "Idle",
	StateSOF1:            "SOF1",
	StateSOF2:            "SOF2",
	StateAddr:            "Addr",
	StateCmd:             "Cmd",
	StatePayload:         "Payload",
	StatePayloadDone:     "PayloadDone",
	StateSkipAddr:        "SkipAddr",
	StateSkipCmd:         "SkipCmd",
	StateSkipPayload:     "SkipPayload",
	StateSkipPayloadDone: "SkipPayloadDone",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// IsSkipping indicates a frame for another address is being skipped.
func (s State) IsSkipping() bool {
	return s >= StateSkipAddr
}

// Stats counts what the decoder has seen.
type Stats struct {
	Frames         uint64 // frames published to the ready slot
	ChecksumErrors uint64
	Dropped        uint64 // valid frames lost because the ready slot was occupied
	Skipped        uint64 // frames addressed elsewhere
	Truncated      uint64 // frames declaring more than MaxPayload
}

// Decoder is the byte-at-a-time receiving state machine.
// It is not safe for concurrent use.
type Decoder struct {
	address  byte
	crc      CRC
	state    State
	command  byte
	length   int
	pos      int
	payload  []byte
	ready    bool
	readyCmd byte
	readyLen int
	readySum byte
	readyBuf []byte
	stats    Stats
}

// NewDecoder creates a Decoder accepting frames for address with
// DefaultMaxPayload.
func NewDecoder(address byte, crc CRC) *Decoder {
	return NewDecoderSize(address, crc, DefaultMaxPayload)
}

// NewDecoderSize creates a Decoder keeping at most maxPayload bytes of
// payload for the local address. maxPayload is limited to [1, MaxWirePayload].
func NewDecoderSize(address byte, crc CRC, maxPayload int) *Decoder {
	if maxPayload < 1 {
		maxPayload = 1
	} else if maxPayload > MaxWirePayload {
		maxPayload = MaxWirePayload
	}
	return &Decoder{
		address:  address,
		crc:      crc,
		payload:  make([]byte, maxPayload),
		readyBuf: make([]byte, maxPayload),
	}
}

// Address returns the local address.
func (d *Decoder) Address() byte {
	return d.address
}

// MaxPayload returns the payload bound for local frames.
func (d *Decoder) MaxPayload() int {
	return len(d.payload)
}

// State gets the current state.
func (d *Decoder) State() State {
	return d.state
}

// Stats returns the counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Reset returns to Idle and clears the ready slot and counters.
func (d *Decoder) Reset() {
	d.state, d.command, d.length, d.pos = StateIdle, 0, 0, 0
	for i := range d.payload {
		d.payload[i] = 0
	}
	d.ready, d.readyCmd, d.readyLen, d.readySum = false, 0, 0, 0
	d.stats = Stats{}
}

// Accept consumes one byte and returns the new state.
func (d *Decoder) Accept(b byte) State {
	switch d.state {
	case StateIdle:
		if b == SOF1 {
			d.state = StateSOF1
		}
	case StateSOF1:
		if b == SOF2 {
			d.state = StateSOF2
		} else {
			d.state = StateIdle
		}
	case StateSOF2:
		if b == d.address {
			d.state = StateAddr
		} else {
			d.state = StateSkipAddr
		}
	case StateAddr:
		d.command = b
		d.state = StateCmd
	case StateCmd:
		d.length, d.pos = int(b), 0
		if d.length == 0 {
			d.state = StatePayloadDone
			break
		}
		if d.length > len(d.payload) {
			d.length = len(d.payload)
			d.stats.Truncated++
		}
		d.state = StatePayload
	case StatePayload:
		d.payload[d.pos] = b
		d.pos++
		if d.pos >= d.length {
			d.state = StatePayloadDone
		}
	case StatePayloadDone:
		d.complete(b)
		d.state = StateIdle
	case StateSkipAddr:
		d.state = StateSkipCmd
	case StateSkipCmd:
		d.length, d.pos = int(b), 0
		if d.length == 0 {
			d.state = StateSkipPayloadDone
		} else {
			d.state = StateSkipPayload
		}
	case StateSkipPayload:
		d.pos++
		if d.pos >= d.length {
			d.state = StateSkipPayloadDone
		}
	case StateSkipPayloadDone:
		d.stats.Skipped++
		d.state = StateIdle
	}
	return d.state
}

func (d *Decoder) complete(sum byte) {
	acc := d.crc.Update(0, d.address)
	acc = d.crc.Update(acc, d.command)
	acc = d.crc.Update(acc, byte(d.length))
	for _, b := range d.payload[:d.length] {
		acc = d.crc.Update(acc, b)
	}
	switch {
	case acc != sum:
		d.stats.ChecksumErrors++
	case d.ready:
		d.stats.Dropped++
	default:
		d.readyCmd, d.readyLen, d.readySum = d.command, d.length, sum
		copy(d.readyBuf, d.payload[:d.length])
		d.ready = true
		d.stats.Frames++
	}
}

// IsReady indicates a received frame is waiting.
func (d *Decoder) IsReady() bool {
	return d.ready
}

// Frame returns the waiting frame without consuming it.
// The payload is only valid until DiscardFrame or TakeFrame.
func (d *Decoder) Frame() (Frame, bool) {
	if !d.ready {
		return Frame{}, false
	}
	return Frame{
		Address:  d.address,
		Command:  d.readyCmd,
		Payload:  d.readyBuf[:d.readyLen],
		Checksum: d.readySum,
	}, true
}

// TakeFrame returns a copy of the waiting frame and re-arms the ready slot.
func (d *Decoder) TakeFrame() (Frame, bool) {
	f, ok := d.Frame()
	if !ok {
		return f, false
	}
	f.Payload = append([]byte(nil), f.Payload...)
	d.ready = false
	return f, true
}

// DiscardFrame re-arms the ready slot. Until it is called, further valid
// frames for the local address are dropped.
func (d *Decoder) DiscardFrame() {
	d.ready = false
}
