// Package serialport opens serial ports for a Link.
package serialport

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is the bus speed of MKMX devices.
const DefaultBaud = 4800

// Config specifies the serial port to open.
type Config struct {
	Name string
	Baud int
	// ReadTimeout makes Read return with no data after the timeout.
	// Zero blocks until data arrives.
	ReadTimeout time.Duration
}

// Port is an opened serial port.
type Port struct {
	port    io.ReadWriteCloser
	timeout bool
}

// Open opens the port as 8N1.
func Open(conf Config) (*Port, error) {
	baud := conf.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        conf.Name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: conf.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s error: %v", conf.Name, err)
	}
	return Wrap(p, conf.ReadTimeout > 0), nil
}

// Wrap creates a Port over an opened stream. With timeout set, a read
// returning neither data nor an error other than EOF counts as a timeout.
func Wrap(rwc io.ReadWriteCloser, timeout bool) *Port {
	return &Port{port: rwc, timeout: timeout}
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if p.timeout && n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close implements io.Closer.
func (p *Port) Close() error {
	return p.port.Close()
}
