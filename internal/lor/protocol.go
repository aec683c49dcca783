// Package lor encodes Light-O-Rama controller commands into the protocol's
// compact variable-length wire format. All functions are pure: they write
// into a caller-supplied buffer through a Writer and report the byte count.
// Value ranges (unit ids, channel ids, masks) are the caller's
// responsibility; only buffer capacity is checked.
package lor

import "math"

// Unit addresses one controller on the bus.
type Unit uint8

// UnitBroadcast is the reserved unit id addressing every controller.
const UnitBroadcast Unit = 0xFF

// Brightness is the protocol-native intensity encoding. Smaller values are
// brighter: 0x01 is full on, 0xF0 is fully dim.
type Brightness uint8

const (
	BrightnessFull Brightness = 0x01
	BrightnessDim  Brightness = 0xF0
)

// Duration counts fade time in 0.1 s ticks, so the representable range is
// 0 to 6553.5 seconds.
type Duration uint16

const ticksPerSecond = 10

// DurationOf converts non-negative seconds to ticks, rounding to the
// nearest tick. Seconds beyond the 16-bit tick ceiling are not
// representable and must be rejected by the caller.
func DurationOf(seconds float64) Duration {
	return Duration(math.Round(seconds * ticksPerSecond))
}

// UnitAction is a unit-level opcode sent without channel addressing.
type UnitAction uint8

const (
	UnitOff UnitAction = 0x41
	UnitOn  UnitAction = 0x42
)

// ChannelAction is a channel-level opcode. On the wire it is OR'd with the
// target channel's magic bits to form the action byte.
type ChannelAction uint8

const (
	ChannelOn            ChannelAction = 0x01
	ChannelOff           ChannelAction = 0x02
	ChannelSetBrightness ChannelAction = 0x03
	ChannelFade          ChannelAction = 0x04
	ChannelTwinkle       ChannelAction = 0x06
	ChannelShimmer       ChannelAction = 0x07
)

const (
	// magicAnd separates chained sub-commands and is the second byte of the
	// heartbeat.
	magicAnd       = 0x81
	magicHeartbeat = 0x56

	// magicChannelID is OR'd into the high bits of a single-channel id byte.
	magicChannelID = 0x80

	// Action-byte tag bits per channel addressing form.
	magicSingle = 0x00
	magicMask8  = 0x30
	magicMask16 = 0x50
)
