package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/muurk/ccufind/internal/discovery"
	"github.com/muurk/ccufind/internal/netif"
)

// Output formats understood by FormatDevices
const (
	FormatDetailed = "detailed"
	FormatCompact  = "compact"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// deviceList is the machine-readable scan document
type deviceList struct {
	Count   int                `json:"count" yaml:"count"`
	Devices []discovery.Device `json:"devices" yaml:"devices"`
}

// FormatDevices renders a scan result in the requested format.
// json and yaml produce a document with a count and the device list;
// detailed and compact produce styled text sized to width.
func FormatDevices(devices []discovery.Device, format string, width int) (string, error) {
	if devices == nil {
		devices = []discovery.Device{}
	}

	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(deviceList{Count: len(devices), Devices: devices}); err != nil {
			return "", fmt.Errorf("failed to encode devices as JSON: %w", err)
		}
		return buf.String(), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(deviceList{Count: len(devices), Devices: devices}); err != nil {
			return "", fmt.Errorf("failed to encode devices as YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("failed to encode devices as YAML: %w", err)
		}
		return buf.String(), nil

	case FormatCompact:
		return RenderCompact(devices), nil

	case FormatDetailed, "":
		return RenderDetailed(devices, width), nil
	}

	return "", fmt.Errorf("unknown output format %q", format)
}

// RenderCompact renders one line per device: host, interface, payload
func RenderCompact(devices []discovery.Device) string {
	var b strings.Builder
	for _, d := range devices {
		iface := d.Interface
		if iface == "" {
			iface = "-"
		}
		fmt.Fprintf(&b, "%-15s  %-10s  %s\n", d.Host, iface, printable(d.Payload))
	}
	return b.String()
}

// RenderDetailed renders each device as a card
func RenderDetailed(devices []discovery.Device, width int) string {
	width = clampWidth(width)

	cards := make([]string, 0, len(devices))
	for i, d := range devices {
		lines := []string{
			DeviceHostStyle.Render(fmt.Sprintf("CCU #%d  %s", i+1, d.Host)),
			"",
			ResultKeyStyle.Render("Payload:") + " " + PayloadStyle.Render(printable(d.Payload)),
		}
		if d.Interface != "" {
			lines = append(lines, ResultKeyStyle.Render("Interface:")+" "+ResultValueStyle.Render(d.Interface))
		}
		if !d.DiscoveredAt.IsZero() {
			lines = append(lines, ResultKeyStyle.Render("Seen:")+" "+
				ResultValueStyle.Render(d.DiscoveredAt.Format(time.RFC3339)))
		}
		cards = append(cards, DeviceCardStyle(width).Render(strings.Join(lines, "\n")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// RenderInterfaces renders the enumerated interfaces as a table with their
// eligibility for discovery.
func RenderInterfaces(ifaces []netif.Interface) string {
	var b strings.Builder

	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-16s %5s  %-15s  %-24s  %s",
		"NAME", "INDEX", "IPV4", "FLAGS", "ELIGIBLE")))
	b.WriteString("\n")

	for _, iface := range ifaces {
		addr := "-"
		if iface.HasIPv4() {
			addr = iface.IPv4.String()
		}

		eligible := StepPendingStyle.Render("no")
		if iface.Eligible() {
			eligible = StepCompleteStyle.Render("yes")
		}

		fmt.Fprintf(&b, "%-16s %5d  %-15s  %-24s  %s\n",
			iface.Name, iface.Index, addr, iface.Flags(), eligible)
	}

	return b.String()
}

// printable replaces control characters so payloads cannot move the cursor
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0) {
			return '.'
		}
		return r
	}, s)
}
