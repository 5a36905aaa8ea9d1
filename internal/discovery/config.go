package discovery

import (
	"net"
	"strconv"
	"time"
)

const (
	// DefaultGroupAddress is the multicast group CCUs listen on
	DefaultGroupAddress = "224.0.0.1"

	// DefaultPort is the UDP port CCUs listen on
	DefaultPort = 43439

	// DefaultTimeout bounds each send and each receive attempt
	DefaultTimeout = 2000 * time.Millisecond

	// DefaultRetryCount is the number of probe/receive rounds per interface
	DefaultRetryCount = 2

	// DefaultTTL keeps probes on the local segment
	DefaultTTL = 5

	// DefaultResendDelay is the pause after each round
	DefaultResendDelay = 100 * time.Millisecond

	// ReceiveBufferSize is the largest reply captured; longer datagrams are truncated
	ReceiveBufferSize = 1024
)

// Config holds discovery tuning
type Config struct {
	// Timeout bounds each send and each receive attempt. Zero selects DefaultTimeout.
	Timeout time.Duration

	// RetryCount is the exact number of probes sent per interface.
	// Negative values are treated as zero.
	RetryCount int

	// TTL is the multicast time-to-live. Zero selects DefaultTTL.
	TTL int

	// ResendDelay is the pause after each round. Negative values are treated as zero.
	ResendDelay time.Duration

	// Group is the multicast destination. Nil selects 224.0.0.1:43439.
	Group *net.UDPAddr

	// MaxParallel bounds concurrent sessions. Zero means one goroutine per interface.
	MaxParallel int

	// Interfaces restricts the search to these interface names. Empty means all.
	Interfaces []string
}

// DefaultConfig returns the standard discovery settings
func DefaultConfig() Config {
	return Config{
		Timeout:     DefaultTimeout,
		RetryCount:  DefaultRetryCount,
		TTL:         DefaultTTL,
		ResendDelay: DefaultResendDelay,
		Group:       DefaultGroup(),
	}
}

// DefaultGroup returns a fresh copy of the default multicast destination
func DefaultGroup() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(DefaultGroupAddress), Port: DefaultPort}
}

// GroupString renders the multicast destination as host:port
func (c Config) GroupString() string {
	g := c.Group
	if g == nil {
		g = DefaultGroup()
	}
	return net.JoinHostPort(g.IP.String(), strconv.Itoa(g.Port))
}

// withDefaults fills unset fields
func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.ResendDelay < 0 {
		c.ResendDelay = 0
	}
	if c.Group == nil {
		c.Group = DefaultGroup()
	}
	if c.MaxParallel < 0 {
		c.MaxParallel = 0
	}
	return c
}
