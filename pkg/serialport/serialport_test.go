package serialport

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePort struct {
	bytes.Buffer
	closed bool
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func TestPortTimeout(t *testing.T) {
	f := &fakePort{}
	p := Wrap(f, true)
	n, err := p.Read(make([]byte, 4))
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = p.Write([]byte{1, 2})
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err = p.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, buf[:n])

	require.NoError(t, p.Close())
	require.True(t, f.closed)
}

func TestPortBlocking(t *testing.T) {
	p := Wrap(&fakePort{}, false)
	_, err := p.Read(make([]byte, 4))
	require.Equal(t, io.EOF, err)
}

func TestOpenMissingPort(t *testing.T) {
	_, err := Open(Config{Name: "/dev/mkmx-does-not-exist"})
	require.Error(t, err)
}
