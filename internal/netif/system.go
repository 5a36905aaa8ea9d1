package netif

import (
	"fmt"
	"net"
)

// SystemProvider enumerates interfaces through the host's net package.
type SystemProvider struct{}

// NewSystemProvider returns the host interface provider.
func NewSystemProvider() *SystemProvider {
	return &SystemProvider{}
}

// Interfaces lists every host interface. Interfaces whose addresses cannot
// be read are reported without an IPv4 address rather than failing the
// whole enumeration.
func (p *SystemProvider) Interfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	out := make([]Interface, 0, len(ifaces))
	for _, ifi := range ifaces {
		iface := Interface{
			Name:      ifi.Name,
			Index:     ifi.Index,
			Up:        ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagRunning != 0,
			Multicast: ifi.Flags&net.FlagMulticast != 0,
			Loopback:  ifi.Flags&net.FlagLoopback != 0,
		}

		if addrs, err := ifi.Addrs(); err == nil {
			iface.IPv4 = firstIPv4(addrs)
		}

		out = append(out, iface)
	}

	return out, nil
}

// firstIPv4 returns the first IPv4 address in addrs, or nil
func firstIPv4(addrs []net.Addr) net.IP {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4
		}
	}
	return nil
}
