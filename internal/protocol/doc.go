// Package protocol implements the CCU UDP discovery message format.
//
// CCUs listen on the multicast group 224.0.0.1, port 43439, for short text
// requests. A request is a positional sequence of fields rendered as text
// and concatenated without delimiters:
//
//	2 <sender id> 1 * 0 <serial> 0 <opcode> <payload>
//
// The sender id is one byte taken from a fresh random value and rendered
// as decimal. The send counter is always 1. Device type and payload are
// the wildcard '*' for discovery, and the serial number is empty, which
// leaves the two '0' separators adjacent. The opcode is rendered as its
// decimal value, so an Identify request from sender 171 reads:
//
//	21711*0073*
//
// # Usage Example
//
//	builder := protocol.NewProbeBuilder(nil)
//	probe, err := builder.BuildIdentify()
//	if err != nil {
//	    return err
//	}
//	_, err = conn.WriteTo(probe, groupAddr)
//
// # Encoding
//
// Messages are encoded one byte per character (ISO-8859-1) in both
// directions. Replies are treated as opaque text and decoded with
// DecodeText.
//
// # Thread Safety
//
// ProbeBuilder is safe for concurrent use as long as its RandomSource is.
// The default source is.
package protocol
