package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"securecast/internal/crypto"
	"securecast/internal/domain"
	"securecast/internal/repair"
	"securecast/internal/store"
	"securecast/internal/wire"
)

// Duration is a time.Duration that reads and writes JSON as "60s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("duration: %s", b)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

// Config holds runtime options for both roles.
type Config struct {
	Home string `json:"home"` // config directory, e.g. $HOME/.securecast

	HandshakePort    int      `json:"handshake_port"`
	HandshakeTimeout Duration `json:"handshake_timeout"`

	GroupName       string          `json:"group_name"`
	Group           domain.Endpoint `json:"group"`
	Interface       string          `json:"interface"`
	TTL             int             `json:"ttl"`
	DisableLoopback bool            `json:"disable_loopback"`

	ChunkSize      int      `json:"chunk_size"`
	Rate           float64  `json:"rate"` // datagrams per second
	Burst          int      `json:"burst"`
	AnnounceTotal  bool     `json:"announce_total"`
	RepeatMetadata bool     `json:"repeat_metadata"`
	StartDelay     Duration `json:"start_delay"`
	Integrity      string   `json:"integrity"` // digest | keyed

	RepairPort        int      `json:"repair_port"`
	RepairMode        string   `json:"repair_mode"`    // multiplexed | sequential
	RepairFraming     string   `json:"repair_framing"` // framed | unframed
	RepairWindow      Duration `json:"repair_window"`
	RepairRetries     int      `json:"repair_retries"`
	RepairRetryDelay  Duration `json:"repair_retry_delay"`
	RepairDialTimeout Duration `json:"repair_dial_timeout"`
	RepairRounds      int      `json:"repair_rounds"`

	ReceiveBuffer int      `json:"receive_buffer"`
	IdleTimeout   Duration `json:"idle_timeout"`
	OutputDir     string   `json:"output_dir"`

	Spool bool `json:"spool"`
}

// Defaults.
const (
	DefaultHandshakePort = 9999
	DefaultRepairPort    = 10000
	DefaultGroupAddr     = "224.1.1.1"
	DefaultGroupPort     = 5007
	DefaultGroupName     = "Default Group Name"
	DefaultOutputDir     = "./received_files"
)

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	var c Config
	_ = c.Validate()
	return c
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	var c Config
	if path != "" {
		if _, err := store.ReadJSON(path, &c); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return c, c.Validate()
}

// Validate fills zero values with defaults and rejects invalid settings.
func (c *Config) Validate() error {
	setInt(&c.HandshakePort, DefaultHandshakePort)
	setInt(&c.RepairPort, DefaultRepairPort)
	setDur(&c.HandshakeTimeout, 10*time.Second)
	if c.GroupName == "" {
		c.GroupName = DefaultGroupName
	}
	if c.Group.Host == "" {
		c.Group.Host = DefaultGroupAddr
	}
	setInt(&c.Group.Port, DefaultGroupPort)
	setInt(&c.TTL, 1)
	setInt(&c.ChunkSize, 1024)
	if c.Rate == 0 {
		c.Rate = 200
	}
	setInt(&c.Burst, 16)
	setDur(&c.StartDelay, time.Second)
	setDur(&c.RepairWindow, repair.DefaultWindow)
	setInt(&c.RepairRetries, repair.DefaultRetries)
	setDur(&c.RepairRetryDelay, repair.DefaultRetryDelay)
	setDur(&c.RepairDialTimeout, repair.DefaultDialTimeout)
	setInt(&c.RepairRounds, repair.DefaultRounds)
	setInt(&c.ReceiveBuffer, 20480)
	setDur(&c.IdleTimeout, 30*time.Second)
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}

	var errs []error
	for name, p := range map[string]int{"handshake_port": c.HandshakePort, "repair_port": c.RepairPort, "group port": c.Group.Port} {
		if p <= 0 || p > 65535 {
			errs = append(errs, fmt.Errorf("%s %d out of range", name, p))
		}
	}
	if ip := net.ParseIP(c.Group.Host); ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		errs = append(errs, fmt.Errorf("group %q is not an IPv4 multicast address", c.Group.Host))
	}
	// Transfer ids are uuid strings.
	record := wire.DataRecordLen(36, c.ChunkSize)
	if record > wire.MaxDatagramSize {
		errs = append(errs, fmt.Errorf("chunk_size %d too large for a datagram", c.ChunkSize))
	} else if record > c.ReceiveBuffer {
		errs = append(errs, fmt.Errorf("receive_buffer %d cannot hold a %d-byte datagram for chunk_size %d", c.ReceiveBuffer, record, c.ChunkSize))
	}
	if _, ok := crypto.ParseMode(c.Integrity); !ok {
		errs = append(errs, fmt.Errorf("integrity %q: want digest or keyed", c.Integrity))
	}
	if _, ok := repair.ParseMode(c.RepairMode); !ok {
		errs = append(errs, fmt.Errorf("repair_mode %q: want multiplexed or sequential", c.RepairMode))
	}
	if _, ok := wire.ParseFraming(c.RepairFraming); !ok {
		errs = append(errs, fmt.Errorf("repair_framing %q: want framed or unframed", c.RepairFraming))
	}
	if c.ReceiveBuffer < wire.MinDataSize {
		errs = append(errs, fmt.Errorf("receive_buffer %d too small", c.ReceiveBuffer))
	}
	return errors.Join(errs...)
}

// HandshakeAddr is the receiver's listen address.
func (c Config) HandshakeAddr() string {
	return net.JoinHostPort("", strconv.Itoa(c.HandshakePort))
}

func setInt(p *int, def int) {
	if *p == 0 {
		*p = def
	}
}

func setDur(p *Duration, def time.Duration) {
	if *p == 0 {
		*p = Duration(def)
	}
}
