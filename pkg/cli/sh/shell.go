package sh

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mkmx/pkg/env"
	"github.com/robotalks/mkmx/pkg/link"
	"github.com/robotalks/mkmx/pkg/mkmx"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	AutoOpen    bool

	Shell   *ishell.Shell
	Config  *env.Config
	Session *Session
}

// Session is an opened port with a running Link.
type Session struct {
	Name   string
	Link   *link.Link
	Port   io.Closer
	Cancel func()

	doneCh chan error
}

const (
	shellKey       = "$shell"
	unopenedPrompt = "[closed] > "
	onlineTimeout  = time.Second
)

var (
	// flags

	evalOnly bool
	autoOpen bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&autoOpen, "open", autoOpen, "Open the configured port on start.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		AutoOpen:    autoOpen,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unopenedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// LinkFrom gets the Link of current session, or nil when closed.
func LinkFrom(c *ishell.Context) *link.Link {
	if s := ShellFrom(c).Session; s != nil {
		return s.Link
	}
	return nil
}

// MustBeOpen wraps command func requires an opened port.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(fmt.Errorf("port not opened"))
			return
		}
		fn(c)
	}
}

// Open opens the serial port named in the config, or portName when
// specified.
func (s *Shell) Open(portName string) error {
	conf := *s.Config
	if portName != "" {
		conf.Port = portName
	}
	l, port, err := conf.OpenLink()
	if err != nil {
		return err
	}
	if err := s.Attach(conf.Port, l, port); err != nil {
		port.Close()
		return err
	}
	return nil
}

// Attach starts a session running l. The port is closed with the session.
func (s *Shell) Attach(name string, l *link.Link, port io.Closer) error {
	s.Close()
	onlineCh := make(chan bool, 2)
	l.Handler = link.HandleFrameFunc(s.printFrame)
	l.Notifier = link.StateChangedFunc(func(_ context.Context, online bool) {
		onlineCh <- online
	})
	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		Name:   name,
		Link:   l,
		Port:   port,
		Cancel: cancel,
		doneCh: make(chan error, 1),
	}
	go func() {
		sess.doneCh <- l.Run(ctx)
	}()
	select {
	case <-onlineCh:
	case err := <-sess.doneCh:
		cancel()
		return err
	case <-time.After(onlineTimeout):
		cancel()
		return fmt.Errorf("link not online after %s", onlineTimeout)
	}
	s.Session = sess
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", name))
	return nil
}

// Close closes current session.
func (s *Shell) Close() {
	if sess := s.Session; sess != nil {
		s.Session = nil
		sess.Cancel()
		if sess.Port != nil {
			sess.Port.Close()
		}
		<-sess.doneCh
		s.Shell.SetPrompt(unopenedPrompt)
	}
}

func (s *Shell) printFrame(_ context.Context, frame *mkmx.Frame) {
	if frame.Command == mkmx.CmdText {
		s.Shell.Printf("TEXT %02X: %s\n", frame.Address, frame.Payload)
		return
	}
	s.Shell.Printf("RX %s\n", frame)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if s.Interactive {
			s.Shell.Printf("Opening %s ...\n", s.Config.Port)
		}
		if err := s.Open(""); err != nil {
			log.Fatalf("open %q failed: %v", s.Config.Port, err)
		}
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd opens a serial port.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[PORT]",
		Func: func(c *ishell.Context) {
			var name string
			if len(c.Args) > 0 {
				name = c.Args[0]
			}
			if err := ShellFrom(c).Open(name); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes current port.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"c"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	if err := env.ParseFlags(); err != nil {
		log.Fatalln(err)
	}
	New(env.NewConfig()).Run(flag.Args()...)
}
