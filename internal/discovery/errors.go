package discovery

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoMulticastInterface is returned by SearchAllInterfaces when no
// interface is up, multicast-capable and IPv4-configured. It is the only
// failure a search reports; per-interface faults are absorbed.
var ErrNoMulticastInterface = errors.New("code 9919: no multicast adapters were found")

// Session steps that can fail
const (
	OpSetup = "setup"
	OpProbe = "probe"
	OpSend  = "send"
)

// SessionError is a networking fault that ended one interface's session
type SessionError struct {
	Op        string // Failed step (OpSetup, OpProbe, OpSend)
	Interface string // Interface name, for context
	LocalIP   string // Membership address, for context
	Err       error  // Underlying error
}

// Error implements the error interface
func (e *SessionError) Error() string {
	return fmt.Sprintf("discovery session on %s (local %s) failed during %s: %v",
		e.Interface, e.LocalIP, e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a network timeout
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
