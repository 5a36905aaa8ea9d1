package netif

import (
	"fmt"
	"net"
	"strings"
)

// Interface is the minimal description of a host network interface that
// discovery needs.
type Interface struct {
	// Name is the OS interface name (e.g., "eth0", "en0")
	Name string

	// Index is the OS interface index used to pin multicast egress
	Index int

	// Up is true when the interface is administratively up and running
	Up bool

	// Multicast is true when the interface supports multicast
	Multicast bool

	// Loopback is true for loopback interfaces
	Loopback bool

	// IPv4 is the first IPv4 address assigned to the interface, nil if IPv4
	// is not configured
	IPv4 net.IP
}

// HasIPv4 reports whether an IPv4 address is configured.
func (i Interface) HasIPv4() bool {
	return i.IPv4 != nil && i.IPv4.To4() != nil
}

// Eligible reports whether the interface can carry a discovery session:
// up, multicast-capable and IPv4-configured.
func (i Interface) Eligible() bool {
	return i.Up && i.Multicast && i.HasIPv4()
}

// String returns a short human-readable description
func (i Interface) String() string {
	addr := "-"
	if i.HasIPv4() {
		addr = i.IPv4.String()
	}
	return fmt.Sprintf("%s (index %d, %s)", i.Name, i.Index, addr)
}

// Flags renders the eligibility-relevant flags, e.g. "up|multicast".
func (i Interface) Flags() string {
	var flags []string
	if i.Up {
		flags = append(flags, "up")
	}
	if i.Multicast {
		flags = append(flags, "multicast")
	}
	if i.Loopback {
		flags = append(flags, "loopback")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, "|")
}

// Provider enumerates host network interfaces.
type Provider interface {
	Interfaces() ([]Interface, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func() ([]Interface, error)

// Interfaces calls f.
func (f ProviderFunc) Interfaces() ([]Interface, error) {
	return f()
}

// Static is a Provider returning a fixed interface list.
type Static []Interface

// Interfaces returns a copy of the list.
func (s Static) Interfaces() ([]Interface, error) {
	out := make([]Interface, len(s))
	copy(out, s)
	return out, nil
}

// FilterEligible returns the eligible interfaces, preserving order.
func FilterEligible(ifaces []Interface) []Interface {
	var out []Interface
	for _, iface := range ifaces {
		if iface.Eligible() {
			out = append(out, iface)
		}
	}
	return out
}

// FilterNames keeps only interfaces whose name is in names, preserving the
// input order. An empty names list keeps everything.
func FilterNames(ifaces []Interface, names []string) []Interface {
	if len(names) == 0 {
		return ifaces
	}

	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}

	var out []Interface
	for _, iface := range ifaces {
		if _, ok := allowed[iface.Name]; ok {
			out = append(out, iface)
		}
	}
	return out
}

// FindByIPv4 returns the interface with the given IPv4 address.
func FindByIPv4(ifaces []Interface, ip net.IP) (Interface, bool) {
	for _, iface := range ifaces {
		if iface.HasIPv4() && iface.IPv4.Equal(ip) {
			return iface, true
		}
	}
	return Interface{}, false
}
