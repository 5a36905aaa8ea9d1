package discovery

import (
	"fmt"
	"time"
)

// Device represents a CCU that answered an Identify probe
type Device struct {
	// Host is the responder's IP address (e.g., "192.168.1.50")
	Host string `json:"host" yaml:"host"`

	// Payload is the raw reply, decoded one byte per character.
	// Its contents are device-defined and not interpreted here.
	Payload string `json:"payload" yaml:"payload"`

	// Interface is the name of the local interface whose session
	// captured the reply. Informational only; dedup ignores it.
	Interface string `json:"interface,omitempty" yaml:"interface,omitempty"`

	// DiscoveredAt is when the reply was received
	DiscoveredAt time.Time `json:"discovered_at" yaml:"discovered_at"`
}

// String returns a human-readable string representation of the device
func (d Device) String() string {
	if d.Interface == "" {
		return fmt.Sprintf("CCU at %s", d.Host)
	}
	return fmt.Sprintf("CCU at %s via %s", d.Host, d.Interface)
}
