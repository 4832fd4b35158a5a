package bus

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mkmx/pkg/cli/sh"
	"github.com/robotalks/mkmx/pkg/mkmx"
)

// ParseByte parses an address or command. Hex digits are expected, an
// optional 0x prefix is accepted.
func ParseByte(s string) (byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	val, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", s)
	}
	return byte(val), nil
}

// ParseHexBytes decodes payload args like "DE AD" or "DEAD" or "de:ad".
func ParseHexBytes(args []string) ([]byte, error) {
	var payload []byte
	for _, arg := range args {
		data, err := hex.DecodeString(strings.ReplaceAll(arg, ":", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid payload %q: %v", arg, err)
		}
		payload = append(payload, data...)
	}
	return payload, nil
}

// FormatStats formats receiving counters for display.
func FormatStats(stats mkmx.Stats, txPending int) string {
	return fmt.Sprintf("frames=%d checksum-errors=%d dropped=%d skipped=%d truncated=%d tx-pending=%d",
		stats.Frames, stats.ChecksumErrors, stats.Dropped, stats.Skipped, stats.Truncated, txPending)
}

func parseAddrCmd(args []string) (addr, cmd byte, err error) {
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("ADDR and CMD required")
	}
	if addr, err = ParseByte(args[0]); err != nil {
		return
	}
	cmd, err = ParseByte(args[1])
	return
}

var (
	// SendCmd sends a frame.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "ADDR CMD [HEX...]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			addr, cmd, err := parseAddrCmd(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			payload, err := ParseHexBytes(c.Args[2:])
			if err != nil {
				c.Err(err)
				return
			}
			if err := sh.LinkFrom(c).Send(addr, cmd, payload); err != nil {
				c.Err(err)
			}
		}),
	}

	// TextCmd sends a debug text frame.
	TextCmd = ishell.Cmd{
		Name:    "text",
		Aliases: []string{"t"},
		Help:    "ADDR MESSAGE...",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("ADDR and MESSAGE required"))
				return
			}
			addr, err := ParseByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if err := sh.LinkFrom(c).SendText(addr, strings.Join(c.Args[1:], " ")); err != nil {
				c.Err(err)
			}
		}),
	}

	// StatsCmd prints the receiving counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			l := sh.LinkFrom(c)
			c.Println(FormatStats(l.Stats(), l.TxPending()))
		}),
	}
)

func init() {
	sh.AddCmds(
		&SendCmd,
		&TextCmd,
		&StatsCmd,
	)
}
