// Package env provides common configuration for MKMX commands.
package env

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/mkmx/pkg/link"
	"github.com/robotalks/mkmx/pkg/mkmx"
	"github.com/robotalks/mkmx/pkg/serialport"
)

// Config provides options to open a Link and its bridges.
type Config struct {
	Port        string   `toml:"port"`
	Baud        int      `toml:"baud"`
	ReadTimeout Duration `toml:"read_timeout"`

	// Address is the local device address.
	Address    uint8 `toml:"address"`
	MaxPayload int   `toml:"max_payload"`

	TxBufferSize  int      `toml:"tx_buffer_size"`
	FlushInterval Duration `toml:"flush_interval"`

	// MQTTBrokerURL specifies the MQTT broker to bridge frames to.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `toml:"mqtt"`
	// MQTTClientID defaults to a machine specific ID.
	MQTTClientID string `toml:"mqtt_client_id"`

	// WebsocketAddr is the listen address of the websocket bridge.
	WebsocketAddr string `toml:"websocket"`
}

// Duration is a time.Duration parsed from strings like "15ms" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

var defaultConfig = Config{
	Port:          "/dev/ttyUSB0",
	Baud:          serialport.DefaultBaud,
	ReadTimeout:   Duration{15 * time.Millisecond},
	MaxPayload:    mkmx.DefaultMaxPayload,
	TxBufferSize:  link.DefaultTxBufferSize,
	FlushInterval: Duration{link.DefaultFlushInterval},
	MQTTBrokerURL: "mqtt://localhost:1883/mkmx/",
}

var configFile string

func init() {
	applyEnv(&defaultConfig, os.Getenv)
}

func applyEnv(c *Config, getenv func(string) string) {
	if val := getenv("MKMX_PORT"); val != "" {
		c.Port = val
	}
	if val := getenv("MKMX_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			c.Baud = baud
		}
	}
	if val := getenv("MKMX_ADDR"); val != "" {
		if addr, err := strconv.ParseUint(val, 0, 8); err == nil {
			c.Address = uint8(addr)
		}
	}
	if val := getenv("MKMX_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := getenv("MKMX_WS_ADDR"); val != "" {
		c.WebsocketAddr = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "TOML config file, applied before other flags.")
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port.")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial baud rate.")
	flag.DurationVar(&defaultConfig.ReadTimeout.Duration, "read-timeout", defaultConfig.ReadTimeout.Duration, "Serial read timeout.")
	flag.Var((*addrValue)(&defaultConfig.Address), "addr", "Local device address.")
	flag.IntVar(&defaultConfig.MaxPayload, "max-payload", defaultConfig.MaxPayload, "Max payload accepted for the local address.")
	flag.IntVar(&defaultConfig.TxBufferSize, "tx-buffer", defaultConfig.TxBufferSize, "Transmit buffer size.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable.")
	flag.StringVar(&defaultConfig.MQTTClientID, "mqtt-client-id", defaultConfig.MQTTClientID, "MQTT client ID.")
	flag.StringVar(&defaultConfig.WebsocketAddr, "ws", defaultConfig.WebsocketAddr, "Websocket listen address, empty to disable.")
}

// ParseFlags parses command line flags. A config file given with -config
// is loaded first so explicit flags override it.
func ParseFlags() error {
	flag.Parse()
	if configFile == "" {
		return nil
	}
	conf, err := LoadFile(configFile, defaultConfig)
	if err != nil {
		return err
	}
	explicit := make(map[string]string)
	flag.Visit(func(f *flag.Flag) {
		if f.Name != "config" {
			explicit[f.Name] = f.Value.String()
		}
	})
	defaultConfig = *conf
	for name, val := range explicit {
		if err := flag.Set(name, val); err != nil {
			return err
		}
	}
	return nil
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile loads a TOML file on top of base.
func LoadFile(path string, base Config) (*Config, error) {
	conf := base
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return nil, fmt.Errorf("config load failed (%s): %v", path, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid (%s): %v", path, err)
	}
	return &conf, nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("serial port must be specified")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Baud)
	}
	if c.MaxPayload <= 0 || c.MaxPayload > mkmx.MaxWirePayload {
		return fmt.Errorf("max payload must be in [1, %d]", mkmx.MaxWirePayload)
	}
	if c.TxBufferSize < mkmx.Overhead+1 {
		return fmt.Errorf("tx buffer must hold at least one frame")
	}
	if c.MQTTBrokerURL != "" {
		u, err := url.Parse(c.MQTTBrokerURL)
		if err != nil {
			return fmt.Errorf("invalid MQTT URL: %v", err)
		}
		if u.Host == "" {
			return fmt.Errorf("MQTT URL has no host: %q", c.MQTTBrokerURL)
		}
	}
	return nil
}

// SerialConfig returns the serial port config.
func (c *Config) SerialConfig() serialport.Config {
	return serialport.Config{
		Name:        c.Port,
		Baud:        c.Baud,
		ReadTimeout: c.ReadTimeout.Duration,
	}
}

// LinkOptions returns the Link options.
func (c *Config) LinkOptions() link.Options {
	return link.Options{
		Address:       c.Address,
		MaxPayload:    c.MaxPayload,
		TxBufferSize:  c.TxBufferSize,
		FlushInterval: c.FlushInterval.Duration,
	}
}

// ClientID returns the MQTT client ID.
func (c *Config) ClientID() string {
	if c.MQTTClientID != "" {
		return c.MQTTClientID
	}
	return "mkmx-" + MachineID()
}

// OpenLink opens the serial port and creates a Link over it.
// The caller closes the returned port.
func (c *Config) OpenLink() (*link.Link, *serialport.Port, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	port, err := serialport.Open(c.SerialConfig())
	if err != nil {
		return nil, nil, err
	}
	return link.New(port, c.LinkOptions()), port, nil
}

// MustOpenLink opens a Link and fails on error.
func (c *Config) MustOpenLink() (*link.Link, *serialport.Port) {
	l, port, err := c.OpenLink()
	if err != nil {
		log.Fatalln(err)
	}
	return l, port
}

type addrValue uint8

func (v *addrValue) String() string {
	return fmt.Sprintf("0x%02X", uint8(*v))
}

func (v *addrValue) Set(s string) error {
	addr, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return fmt.Errorf("invalid address %q", s)
	}
	*v = addrValue(addr)
	return nil
}
