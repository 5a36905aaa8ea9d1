//go:build !unix && !windows

package discovery

import "syscall"

// reuseAddrControl is a no-op where socket options are unavailable
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
