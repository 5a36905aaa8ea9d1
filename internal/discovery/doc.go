// Package discovery locates CCU controllers on the local network.
//
// CCUs answer an Identify probe sent to the multicast group 224.0.0.1 on
// UDP port 43439. This package runs that exchange on every usable local
// interface and merges the answers into one list with one entry per host.
//
// # Discovery Process
//
// The discovery process works as follows:
//  1. Enumerate local interfaces and keep those that are up,
//     multicast-capable and IPv4-configured
//  2. For each interface, open an isolated socket: ephemeral port, address
//     reuse, multicast TTL 5, group membership on the local address, egress
//     pinned to the interface index
//  3. Send an Identify probe, wait for one reply, pause 100 ms, repeat
//     RetryCount times
//  4. Close the socket, whatever happened
//  5. Merge the per-interface replies in enumeration order, first reply per
//     host wins
//
// # Usage Example
//
//	svc := discovery.NewService(discovery.DefaultConfig())
//	devices, err := svc.SearchAllInterfaces(ctx, "")
//	if errors.Is(err, discovery.ErrNoMulticastInterface) {
//	    log.Fatal("no usable network interface")
//	}
//	for _, d := range devices {
//	    fmt.Printf("Found: %s (%s)\n", d.Host, d.Payload)
//	}
//
// # Failure Policy
//
// A search fails only when no interface was eligible, or when the caller
// cancels ctx. Bind, join and send failures on one interface are logged
// and that interface simply contributes no devices. Receive timeouts are
// the normal outcome when nothing answers and are not errors at all.
//
// # Timing
//
// There is no overall deadline. Each interface takes roughly
// RetryCount × (Timeout + ResendDelay); interfaces are searched
// concurrently, so a whole search takes about as long as one interface.
//
// # Thread Safety
//
// Service is safe for concurrent use. Each session owns its socket; the
// only shared state is the merge, which runs after every session has
// finished.
package discovery
