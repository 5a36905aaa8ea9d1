package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// PacketConn is the part of a UDP socket a session uses.
// *net.UDPConn satisfies it.
type PacketConn interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
	ReadFrom(b []byte) (int, net.Addr, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// SessionParams scopes a session to one local interface
type SessionParams struct {
	// Interface is the interface name, used for logging and results
	Interface string

	// LocalIP is the IPv4 address the group membership is bound to.
	// Empty joins on the system default interface.
	LocalIP string

	// InterfaceIndex pins multicast egress to this interface.
	// Zero leaves egress to the OS routing table.
	InterfaceIndex int
}

// Opener sets up the socket for one session
type Opener interface {
	Open(ctx context.Context, params SessionParams) (PacketConn, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(ctx context.Context, params SessionParams) (PacketConn, error)

// Open calls f
func (f OpenerFunc) Open(ctx context.Context, params SessionParams) (PacketConn, error) {
	return f(ctx, params)
}

// MulticastOpener opens real UDP multicast sockets
type MulticastOpener struct {
	// Group is the multicast group to join
	Group *net.UDPAddr

	// TTL is the multicast time-to-live for outgoing probes
	TTL int
}

// NewMulticastOpener creates an opener for the group in cfg
func NewMulticastOpener(cfg Config) *MulticastOpener {
	cfg = cfg.withDefaults()
	return &MulticastOpener{Group: cfg.Group, TTL: cfg.TTL}
}

// Open binds an ephemeral udp4 socket with address reuse, sets the
// multicast TTL, joins the group on the interface owning params.LocalIP and
// pins egress to params.InterfaceIndex when set. On any failure the socket
// is closed before returning.
func (o *MulticastOpener) Open(ctx context.Context, params SessionParams) (PacketConn, error) {
	member, err := membershipInterface(params.LocalIP)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(ctx, "udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("failed to bind udp4 socket: %w", err)
	}

	ok := false
	defer func() {
		if !ok {
			pc.Close()
		}
	}()

	p4 := ipv4.NewPacketConn(pc)

	ttl := o.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := p4.SetMulticastTTL(ttl); err != nil {
		return nil, fmt.Errorf("failed to set multicast TTL %d: %w", ttl, err)
	}

	group := o.Group
	if group == nil {
		group = DefaultGroup()
	}
	if err := p4.JoinGroup(member, &net.UDPAddr{IP: group.IP}); err != nil {
		return nil, fmt.Errorf("failed to join %s on local address %q: %w", group.IP, params.LocalIP, err)
	}

	if params.InterfaceIndex > 0 {
		ifi, err := net.InterfaceByIndex(params.InterfaceIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to look up interface index %d: %w", params.InterfaceIndex, err)
		}
		if err := p4.SetMulticastInterface(ifi); err != nil {
			return nil, fmt.Errorf("failed to pin multicast egress to %s: %w", ifi.Name, err)
		}
	}

	ok = true
	return pc, nil
}

// membershipInterface resolves the interface a group membership is bound
// to. Empty or unspecified addresses select the system default (nil).
func membershipInterface(localIP string) (*net.Interface, error) {
	if localIP == "" {
		return nil, nil
	}

	ip := net.ParseIP(localIP)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("invalid local IPv4 address: %q", localIP)
	}
	if ip.IsUnspecified() {
		return nil, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipNet, isNet := a.(*net.IPNet); isNet && ipNet.IP.Equal(ip) {
				return &ifaces[i], nil
			}
		}
	}

	return nil, fmt.Errorf("local address %s is not assigned to any interface", ip)
}
