package link

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mkmx/pkg/mkmx"
	"github.com/robotalks/mkmx/pkg/ringbuf"
)

// FrameHandler is called when a frame for the local address is received.
type FrameHandler interface {
	HandleFrame(context.Context, *mkmx.Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, *mkmx.Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *mkmx.Frame) {
	f(ctx, frame)
}

// FrameHandlers dispatches a frame to each handler in order.
type FrameHandlers []FrameHandler

// HandleFrame implements FrameHandler.
func (h FrameHandlers) HandleFrame(ctx context.Context, frame *mkmx.Frame) {
	for _, handler := range h {
		handler.HandleFrame(ctx, frame)
	}
}

// StateNotifier is called when the link goes online or offline.
type StateNotifier interface {
	StateChanged(ctx context.Context, online bool)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, bool)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, online bool) {
	f(ctx, online)
}

// Options configures a Link.
type Options struct {
	// Address is the local device address.
	Address byte
	// CRC defaults to mkmx.CRC8.
	CRC mkmx.CRC
	// MaxPayload bounds received payloads, defaults to mkmx.DefaultMaxPayload.
	MaxPayload int
	// TxBufferSize is the capacity of the transmit ring.
	TxBufferSize int
	// FlushInterval is how often the transmit ring is drained even without
	// a new frame queued.
	FlushInterval time.Duration
}

// Defaults for Options.
const (
	DefaultTxBufferSize  = 1024
	DefaultFlushInterval = 15 * time.Millisecond
)

const readChunkSize = 256

// Link runs the MKMX protocol over a byte stream, typically a serial port.
type Link struct {
	ReadWriter io.ReadWriter
	Handler    FrameHandler
	Notifier   StateNotifier

	crc           mkmx.CRC
	flushInterval time.Duration

	decoder *mkmx.Decoder
	decLock sync.Mutex

	tx     *ringbuf.Synced[byte]
	txWake chan struct{}

	online bool
	lock   sync.RWMutex
}

// New creates a Link.
func New(rw io.ReadWriter, opts Options) *Link {
	if opts.CRC == nil {
		opts.CRC = mkmx.CRC8
	}
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = mkmx.DefaultMaxPayload
	}
	if opts.TxBufferSize <= 0 {
		opts.TxBufferSize = DefaultTxBufferSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	l := &Link{
		ReadWriter:    rw,
		crc:           opts.CRC,
		flushInterval: opts.FlushInterval,
		decoder:       mkmx.NewDecoderSize(opts.Address, opts.CRC, opts.MaxPayload),
		tx:            ringbuf.NewSynced[byte](opts.TxBufferSize),
		txWake:        make(chan struct{}, 1),
	}
	l.tx.SetOverflowHandler(func() {
		glog.Warning("tx buffer overflow")
	})
	return l
}

// Address returns the local address.
func (l *Link) Address() byte {
	return l.decoder.Address()
}

// Online indicates Run is active.
func (l *Link) Online() bool {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.online
}

// Stats returns the receiving counters.
func (l *Link) Stats() mkmx.Stats {
	l.decLock.Lock()
	defer l.decLock.Unlock()
	return l.decoder.Stats()
}

// TxPending returns the number of bytes waiting to be written.
func (l *Link) TxPending() int {
	return l.tx.Used()
}

// Send queues a frame for transmission. The frame is queued entirely or
// not at all.
func (l *Link) Send(addr, cmd byte, payload []byte) error {
	frame, err := mkmx.NewFrame(addr, cmd, payload, l.crc)
	if err != nil {
		return err
	}
	return l.SendFrame(frame)
}

// SendText queues a debug text frame.
func (l *Link) SendText(addr byte, text string) error {
	frame, err := mkmx.NewTextFrame(addr, text, l.crc)
	if err != nil {
		return err
	}
	return l.SendFrame(frame)
}

// SendFrame queues an already sealed frame.
func (l *Link) SendFrame(frame *mkmx.Frame) error {
	if !l.Online() {
		return ErrOffline
	}
	if !l.tx.PushAll(frame.Bytes()) {
		glog.Warningf("not enough free space in tx buffer for %d bytes (%d free)",
			frame.Len(), l.tx.Free())
		return ErrTxBufferFull
	}
	glog.V(2).Infof("TX %s", frame)
	select {
	case l.txWake <- struct{}{}:
	default:
	}
	return nil
}

// Run processes the Link until ctx is canceled or reading fails.
func (l *Link) Run(ctx context.Context) error {
	l.decLock.Lock()
	l.decoder.Reset()
	l.decLock.Unlock()
	l.tx.Flush()
	l.setOnline(ctx, true)
	defer l.setOnline(ctx, false)

	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, chunkCh, errCh)

	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()
	outBuf := make([]byte, l.tx.Cap())
	for {
		select {
		case chunk := <-chunkCh:
			l.receive(ctx, chunk)
		case <-l.txWake:
			if err := l.flush(outBuf); err != nil {
				return err
			}
		case <-ticker.C:
			if err := l.flush(outBuf); err != nil {
				return err
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Link) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	for {
		buf := make([]byte, readChunkSize)
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case chunkCh <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil && !os.IsTimeout(err) {
			errCh <- err
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (l *Link) receive(ctx context.Context, chunk []byte) {
	var frames []mkmx.Frame
	l.decLock.Lock()
	for _, b := range chunk {
		l.decoder.Accept(b)
		if frame, ok := l.decoder.TakeFrame(); ok {
			frames = append(frames, frame)
		}
	}
	l.decLock.Unlock()

	for n := range frames {
		frame := &frames[n]
		glog.V(2).Infof("RX %s", frame)
		if h := l.Handler; h != nil {
			h.HandleFrame(ctx, frame)
		}
	}
}

func (l *Link) flush(buf []byte) error {
	for {
		n := l.tx.PopBulk(buf)
		if n == 0 {
			return nil
		}
		if _, err := l.ReadWriter.Write(buf[:n]); err != nil {
			return err
		}
	}
}

func (l *Link) setOnline(ctx context.Context, online bool) {
	var notifier StateNotifier
	l.lock.Lock()
	if l.online != online {
		l.online = online
		notifier = l.Notifier
	}
	l.lock.Unlock()
	if online {
		glog.Infof("link online, address %02X", l.Address())
	} else {
		glog.Info("link offline")
	}
	if notifier != nil {
		notifier.StateChanged(ctx, online)
	}
}
