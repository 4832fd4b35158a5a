package link

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mkmx/pkg/mkmx"
)

const testAddr byte = 0x42

type chanReadWriter struct {
	readCh  chan []byte
	writeCh chan byte
}

func newChanReadWriter() *chanReadWriter {
	return &chanReadWriter{
		readCh:  make(chan []byte),
		writeCh: make(chan byte, 1024),
	}
}

func (c *chanReadWriter) Read(p []byte) (int, error) {
	b, ok := <-c.readCh
	if !ok {
		return 0, io.EOF
	}
	return copy(p, b), nil
}

func (c *chanReadWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		c.writeCh <- b
	}
	return len(p), nil
}

type linkTestEnv struct {
	t       *testing.T
	rw      *chanReadWriter
	link    *Link
	frameCh chan *mkmx.Frame
	stateCh chan bool
	cancel  context.CancelFunc
	doneCh  chan error
}

func newLinkTestEnv(t *testing.T, opts Options) *linkTestEnv {
	env := &linkTestEnv{
		t:       t,
		rw:      newChanReadWriter(),
		frameCh: make(chan *mkmx.Frame, 8),
		stateCh: make(chan bool, 4),
		doneCh:  make(chan error, 1),
	}
	opts.Address = testAddr
	env.link = New(env.rw, opts)
	env.link.Handler = HandleFrameFunc(func(_ context.Context, frame *mkmx.Frame) {
		env.frameCh <- frame
	})
	env.link.Notifier = StateChangedFunc(func(_ context.Context, online bool) {
		env.stateCh <- online
	})
	return env
}

func (e *linkTestEnv) start() *linkTestEnv {
	var ctx context.Context
	ctx, e.cancel = context.WithCancel(context.Background())
	go func() {
		e.doneCh <- e.link.Run(ctx)
	}()
	e.expectState(true)
	return e
}

func (e *linkTestEnv) stop() error {
	e.cancel()
	err := <-e.doneCh
	e.expectState(false)
	return err
}

func (e *linkTestEnv) expectState(online bool) {
	select {
	case state := <-e.stateCh:
		require.Equal(e.t, online, state)
	case <-time.After(time.Second):
		e.t.Fatal("expect state change timeout")
	}
}

func (e *linkTestEnv) inject(chunks ...[]byte) {
	for _, chunk := range chunks {
		e.rw.readCh <- chunk
	}
}

func (e *linkTestEnv) expectFrame() *mkmx.Frame {
	select {
	case frame := <-e.frameCh:
		return frame
	case <-time.After(time.Second):
		e.t.Fatal("expect frame timeout")
	}
	return nil
}

func (e *linkTestEnv) expectWritten(expected []byte) {
	for n, b := range expected {
		select {
		case actual := <-e.rw.writeCh:
			require.Equalf(e.t, b, actual, "written[%d] mismatch", n)
		case <-time.After(time.Second):
			e.t.Fatalf("expect written[%d] timeout", n)
		}
	}
}

func encode(t *testing.T, addr, cmd byte, payload ...byte) []byte {
	frame, err := mkmx.NewFrame(addr, cmd, payload, mkmx.CRC8)
	require.NoError(t, err)
	return frame.Bytes()
}

func TestLinkOffline(t *testing.T) {
	env := newLinkTestEnv(t, Options{})
	require.False(t, env.link.Online())
	require.Equal(t, ErrOffline, env.link.Send(0x01, 0x02, nil))
}

func TestLinkReceive(t *testing.T) {
	env := newLinkTestEnv(t, Options{}).start()
	defer env.stop()

	bad := encode(t, testAddr, 0x03, 0x01)
	bad[len(bad)-1]++
	env.inject(
		[]byte{0x00, 0x11},
		encode(t, 0x24, 0x99, 1, 2, 3),
		bad,
		encode(t, testAddr, 0x99, 0xDE)[:3],
		encode(t, testAddr, 0x99, 0xDE)[3:],
	)
	frame := env.expectFrame()
	require.Equal(t, testAddr, frame.Address)
	require.Equal(t, byte(0x99), frame.Command)
	require.Equal(t, []byte{0xDE}, frame.Payload)

	stats := env.link.Stats()
	require.Equal(t, uint64(1), stats.Frames)
	require.Equal(t, uint64(1), stats.Skipped)
	require.Equal(t, uint64(1), stats.ChecksumErrors)
}

func TestLinkReceiveMultipleInOneChunk(t *testing.T) {
	env := newLinkTestEnv(t, Options{}).start()
	defer env.stop()

	chunk := append(encode(t, testAddr, 1, 0xAA), encode(t, testAddr, 2, 0xBB)...)
	env.inject(chunk)
	frame := env.expectFrame()
	require.Equal(t, byte(1), frame.Command)
	frame = env.expectFrame()
	require.Equal(t, byte(2), frame.Command)
}

func TestLinkSend(t *testing.T) {
	env := newLinkTestEnv(t, Options{}).start()
	defer env.stop()

	require.NoError(t, env.link.Send(0x24, 0x99, []byte{0xDE, 0xAD}))
	env.expectWritten(encode(t, 0x24, 0x99, 0xDE, 0xAD))
	require.NoError(t, env.link.SendText(0x00, "1234"))
	env.expectWritten([]byte{mkmx.SOF1, mkmx.SOF2, 0x00, 't', 0x04, '1', '2', '3', '4'})
}

func TestLinkSendErrors(t *testing.T) {
	env := newLinkTestEnv(t, Options{TxBufferSize: 8}).start()
	defer env.stop()

	require.Equal(t, ErrTxBufferFull, env.link.Send(0x24, 0x99, []byte{1, 2, 3}))
	require.Equal(t, mkmx.ErrPayloadTooLong, env.link.Send(0x24, 0x99, make([]byte, 256)))
	require.Zero(t, env.link.TxPending())
	require.NoError(t, env.link.Send(0x24, 0x99, []byte{1}))
	env.expectWritten(encode(t, 0x24, 0x99, 1))
}

func TestLinkReadError(t *testing.T) {
	env := newLinkTestEnv(t, Options{}).start()
	close(env.rw.readCh)
	select {
	case err := <-env.doneCh:
		require.Equal(t, io.EOF, err)
	case <-time.After(time.Second):
		t.Fatal("expect link stop timeout")
	}
	env.expectState(false)
	require.False(t, env.link.Online())
}

func TestLinkStop(t *testing.T) {
	env := newLinkTestEnv(t, Options{}).start()
	require.True(t, env.link.Online())
	require.Equal(t, context.Canceled, env.stop())
	require.False(t, env.link.Online())
}

func TestLinkWithMailbox(t *testing.T) {
	env := newLinkTestEnv(t, Options{})
	mailbox := NewMailbox()
	env.link.Handler = mailbox
	env.start()
	defer env.stop()

	// the trailing chunks are only accepted once the frames were handled
	env.inject(encode(t, testAddr, 1, 0xAA), encode(t, testAddr, 2, 0xBB), []byte{0}, []byte{0})
	require.Equal(t, uint64(1), mailbox.Dropped())
	select {
	case frame := <-mailbox.C():
		require.Equal(t, byte(1), frame.Command)
	case <-time.After(time.Second):
		t.Fatal("expect frame timeout")
	}
}

func TestMailbox(t *testing.T) {
	m := NewMailbox()
	_, ok := m.Take()
	require.False(t, ok)

	m.HandleFrame(context.Background(), &mkmx.Frame{Command: 1})
	m.HandleFrame(context.Background(), &mkmx.Frame{Command: 2})
	require.Equal(t, uint64(1), m.Dropped())
	frame, ok := m.Take()
	require.True(t, ok)
	require.Equal(t, byte(1), frame.Command)
	_, ok = m.Take()
	require.False(t, ok)
}

func TestFrameHandlers(t *testing.T) {
	var got []string
	handlers := FrameHandlers{
		HandleFrameFunc(func(_ context.Context, frame *mkmx.Frame) { got = append(got, "a") }),
		HandleFrameFunc(func(_ context.Context, frame *mkmx.Frame) { got = append(got, "b") }),
	}
	handlers.HandleFrame(context.Background(), &mkmx.Frame{})
	require.Equal(t, []string{"a", "b"}, got)
}
