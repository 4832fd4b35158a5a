package mqtt

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/mkmx/pkg/mkmx"
)

// Topics relative to the queue prefix.
const (
	RxTopicPrefix = "rx/"
	TxTopicPrefix = "tx/"
	TxTopicFilter = TxTopicPrefix + "+/+"
)

// Sender sends a frame on the bus.
type Sender interface {
	Send(addr, cmd byte, payload []byte) error
}

// Bridge publishes received frames to MQTT and sends frames published
// to the tx topics.
type Bridge struct {
	Queue  *Queue
	Sender Sender
}

// NewBridge creates a Bridge.
func NewBridge(q *Queue, sender Sender) *Bridge {
	return &Bridge{Queue: q, Sender: sender}
}

// RxTopic returns the topic a received frame is published to.
func RxTopic(addr, cmd byte) string {
	return fmt.Sprintf("%s%02x/%02x", RxTopicPrefix, addr, cmd)
}

// TxTopic returns the topic to publish to for sending a frame.
func TxTopic(addr, cmd byte) string {
	return fmt.Sprintf("%s%02x/%02x", TxTopicPrefix, addr, cmd)
}

// ParseTxTopic extracts address and command from a tx topic.
func ParseTxTopic(topic string) (addr, cmd byte, err error) {
	if !strings.HasPrefix(topic, TxTopicPrefix) {
		return 0, 0, fmt.Errorf("not a tx topic: %q", topic)
	}
	tokens := strings.Split(topic[len(TxTopicPrefix):], "/")
	if len(tokens) != 2 {
		return 0, 0, fmt.Errorf("invalid tx topic: %q", topic)
	}
	if addr, err = parseHexByte(tokens[0]); err != nil {
		return 0, 0, fmt.Errorf("invalid address in topic %q: %v", topic, err)
	}
	if cmd, err = parseHexByte(tokens[1]); err != nil {
		return 0, 0, fmt.Errorf("invalid command in topic %q: %v", topic, err)
	}
	return
}

func parseHexByte(s string) (byte, error) {
	if len(s) == 0 || len(s) > 2 {
		return 0, fmt.Errorf("expect 1 or 2 hex digits, got %q", s)
	}
	val, err := strconv.ParseUint(s, 16, 8)
	return byte(val), err
}

// HandleFrame implements link.FrameHandler.
func (b *Bridge) HandleFrame(ctx context.Context, frame *mkmx.Frame) {
	topic := RxTopic(frame.Address, frame.Command)
	glog.V(2).Infof("PUB %q %d bytes", topic, len(frame.Payload))
	b.Queue.Pub(topic, frame.Payload)
}

// Run implements framework.Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.Queue.Sub(TxTopicFilter, b.handleTx)
	b.Queue.Connect()
	<-ctx.Done()
	sub.Close()
	b.Queue.Close()
	return nil
}

func (b *Bridge) handleTx(topic string, payload []byte) {
	addr, cmd, err := ParseTxTopic(topic)
	if err != nil {
		glog.Warningf("ignore message: %v", err)
		return
	}
	if err := b.Sender.Send(addr, cmd, payload); err != nil {
		glog.Errorf("send %02x/%02x failed: %v", addr, cmd, err)
	}
}
