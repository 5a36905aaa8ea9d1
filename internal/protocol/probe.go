package protocol

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Probe field constants.
//
// Layout (positional, no delimiters other than the two literal '0' fields):
//
//	version | sender id | counter | device type | '0' | serial | '0' | opcode | payload
//	"2"     | "0".."255"| "1"     | "*"         | "0" | ""     | "0" | "73"   | "*"
const (
	// ProbeVersion is the protocol version marker that opens every message
	ProbeVersion = "2"

	// ProbeSendCounter is the send counter. CCUs accept a constant counter,
	// so it is never incremented across retries.
	ProbeSendCounter = "1"

	// WildcardDeviceType addresses every device type
	WildcardDeviceType = "*"

	// WildcardPayload is the payload of a discovery request
	WildcardPayload = "*"

	// FieldSeparator is the literal that frames the serial number field
	FieldSeparator = "0"
)

// RandomSource supplies the entropy for the sender id fragment.
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	Uint32() uint32
}

// globalSource draws from the auto-seeded math/rand/v2 generator, which is
// safe for concurrent use.
type globalSource struct{}

func (globalSource) Uint32() uint32 { return rand.Uint32() }

// DefaultRandomSource returns the process-wide random source.
func DefaultRandomSource() RandomSource {
	return globalSource{}
}

// ProbeBuilder builds discovery probes. A zero ProbeBuilder is ready to use
// and draws from DefaultRandomSource.
type ProbeBuilder struct {
	Rand RandomSource
}

// NewProbeBuilder creates a builder drawing from src. A nil src selects the
// default source.
func NewProbeBuilder(src RandomSource) *ProbeBuilder {
	return &ProbeBuilder{Rand: src}
}

// SenderID derives the one-byte sender id from a random value: bits 8-15 of
// its low 24 bits.
func SenderID(r uint32) uint8 {
	senderID := r & 0xFFFFFF
	return uint8((senderID >> 8) & 0xFF)
}

// Build constructs a fresh probe for op. Every call draws a new sender id.
func (b *ProbeBuilder) Build(op Opcode) ([]byte, error) {
	src := b.Rand
	if src == nil {
		src = DefaultRandomSource()
	}

	text := FormatProbe(SenderID(src.Uint32()), op)

	data, err := EncodeText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode probe: %w", err)
	}
	return data, nil
}

// BuildIdentify constructs the Identify probe used for discovery.
func (b *ProbeBuilder) BuildIdentify() ([]byte, error) {
	return b.Build(OpIdentify)
}

// FormatProbe renders the probe text for a given sender id and opcode.
func FormatProbe(sender uint8, op Opcode) string {
	var sb strings.Builder
	sb.WriteString(ProbeVersion)
	sb.WriteString(strconv.Itoa(int(sender)))
	sb.WriteString(ProbeSendCounter)
	sb.WriteString(WildcardDeviceType)
	sb.WriteString(FieldSeparator)
	// serial number: empty for a broadcast request
	sb.WriteString(FieldSeparator)
	sb.WriteString(strconv.Itoa(int(op)))
	sb.WriteString(WildcardPayload)
	return sb.String()
}

// ProbeFields is the decoded view of a probe built by FormatProbe.
type ProbeFields struct {
	Version    string
	SenderID   uint8
	Counter    string
	DeviceType string
	Serial     string
	Opcode     Opcode
	Payload    string
}

// ParseProbe splits a wildcard probe back into its fields. Only the shape
// produced by this package is accepted: wildcard device type and an empty
// serial number.
func ParseProbe(data []byte) (*ProbeFields, error) {
	text := DecodeText(data)

	if !strings.HasPrefix(text, ProbeVersion) {
		return nil, fmt.Errorf("unexpected version marker in probe %q", text)
	}
	rest := text[len(ProbeVersion):]

	// The wildcard device type is the first '*'; the char before it is the
	// counter and everything between the version and the counter is the
	// sender id.
	star := strings.Index(rest, WildcardDeviceType)
	if star < 2 {
		return nil, fmt.Errorf("missing sender id or counter in probe %q", text)
	}
	senderText := rest[:star-1]
	counter := rest[star-1 : star]

	sender, err := strconv.ParseUint(senderText, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid sender id %q: %w", senderText, err)
	}

	rest = rest[star+len(WildcardDeviceType):]
	if !strings.HasPrefix(rest, FieldSeparator+FieldSeparator) {
		return nil, fmt.Errorf("missing serial number separators in probe %q", text)
	}
	rest = rest[2*len(FieldSeparator):]

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return nil, fmt.Errorf("missing opcode in probe %q", text)
	}
	op, err := strconv.ParseUint(rest[:digits], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid opcode %q: %w", rest[:digits], err)
	}

	return &ProbeFields{
		Version:    ProbeVersion,
		SenderID:   uint8(sender),
		Counter:    counter,
		DeviceType: WildcardDeviceType,
		Serial:     "",
		Opcode:     Opcode(op),
		Payload:    rest[digits:],
	}, nil
}
