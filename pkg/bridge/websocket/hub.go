// Package websocket exposes the bus to websocket clients. Each message is
// one MKMX frame in wire format.
package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/mkmx/pkg/framework"
	"github.com/robotalks/mkmx/pkg/mkmx"
)

// DefaultPath is where Server mounts the Hub.
const DefaultPath = "/mkmx"

const clientQueueSize = 16

// Sender sends a frame on the bus.
type Sender interface {
	Send(addr, cmd byte, payload []byte) error
}

// Hub broadcasts received frames to all connected clients and sends frames
// written by the clients.
type Hub struct {
	Sender Sender
	CRC    mkmx.CRC

	lock    sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn   *websocket.Conn
	sendCh chan []byte
}

// NewHub creates a Hub.
func NewHub(sender Sender, crc mkmx.CRC) *Hub {
	if crc == nil {
		crc = mkmx.CRC8
	}
	return &Hub{
		Sender:  sender,
		CRC:     crc,
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// Handler returns the websocket handler serving clients.
func (h *Hub) Handler() websocket.Handler {
	return websocket.Handler(h.serve)
}

// HandleFrame implements link.FrameHandler.
func (h *Hub) HandleFrame(ctx context.Context, frame *mkmx.Frame) {
	data := frame.Bytes()
	h.lock.RLock()
	defer h.lock.RUnlock()
	for c := range h.clients {
		select {
		case c.sendCh <- data:
		default:
			glog.Warningf("websocket client %s too slow, frame dropped", c.conn.Request().RemoteAddr)
		}
	}
}

func (h *Hub) closeAll() {
	h.lock.RLock()
	defer h.lock.RUnlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

func (h *Hub) serve(conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	c := &client{conn: conn, sendCh: make(chan []byte, clientQueueSize)}
	remote := conn.Request().RemoteAddr
	h.lock.Lock()
	h.clients[c] = struct{}{}
	h.lock.Unlock()
	glog.Infof("websocket client %s connected", remote)

	go c.writeLoop()
	defer func() {
		h.lock.Lock()
		delete(h.clients, c)
		close(c.sendCh)
		h.lock.Unlock()
		glog.Infof("websocket client %s disconnected", remote)
	}()

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			return
		}
		frame, err := mkmx.Unmarshal(data, h.CRC)
		if err != nil {
			glog.Warningf("websocket client %s: invalid frame: %v", remote, err)
			continue
		}
		if err := h.Sender.Send(frame.Address, frame.Command, frame.Payload); err != nil {
			glog.Errorf("websocket client %s: send %s failed: %v", remote, frame, err)
		}
	}
}

func (c *client) writeLoop() {
	for data := range c.sendCh {
		if err := websocket.Message.Send(c.conn, data); err != nil {
			c.conn.Close()
			return
		}
	}
}

// Server serves a Hub over HTTP.
type Server struct {
	Addr string
	Path string
	Hub  *Hub
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	path := s.Path
	if path == "" {
		path = DefaultPath
	}
	mux := http.NewServeMux()
	mux.Handle(path, s.Hub.Handler())
	srv := &http.Server{Handler: mux}
	glog.Infof("websocket listening on %s%s", ln.Addr(), path)
	err = fx.RunWithContextCloser(ctx, srv, func() error {
		return srv.Serve(ln)
	})
	s.Hub.closeAll()
	return err
}
