package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/mkmx/pkg/bridge/mqtt"
	"github.com/robotalks/mkmx/pkg/bridge/websocket"
	"github.com/robotalks/mkmx/pkg/env"
	fx "github.com/robotalks/mkmx/pkg/framework"
	"github.com/robotalks/mkmx/pkg/link"
	"github.com/robotalks/mkmx/pkg/mkmx"
)

func init() {
	env.SetupFlags()
}

func main() {
	if err := env.ParseFlags(); err != nil {
		log.Fatalln(err)
	}
	defer glog.Flush()

	conf := env.Default()
	l, port := conf.MustOpenLink()
	defer port.Close()

	var (
		handlers  link.FrameHandlers
		runnables []fx.Runnable
	)
	if conf.MQTTBrokerURL != "" {
		q, err := mqtt.NewQueueFromURL(conf.MQTTBrokerURL, conf.ClientID())
		if err != nil {
			log.Fatalln(err)
		}
		bridge := mqtt.NewBridge(q, l)
		handlers = append(handlers, bridge)
		runnables = append(runnables, fx.NamedRun("mqtt", bridge))
	}
	if conf.WebsocketAddr != "" {
		hub := websocket.NewHub(l, nil)
		handlers = append(handlers, hub)
		runnables = append(runnables, fx.NamedRun("websocket", &websocket.Server{Addr: conf.WebsocketAddr, Hub: hub}))
	}
	if len(handlers) == 0 {
		handlers = append(handlers, link.HandleFrameFunc(logFrame))
	}
	l.Handler = handlers

	err := fx.NewRunner().
		HandleSignals().
		Go(fx.NamedRun("link", l)).
		Go(runnables...).
		Wait()
	if err != nil {
		glog.Errorf("exit: %v", err)
	}
}

func logFrame(_ context.Context, frame *mkmx.Frame) {
	glog.Infof("RX %s", frame)
}
