package lor

// Channel references one or more outputs on a unit. Exactly three variants
// implement it: ChannelID, ChannelMask8, and ChannelMask16. Each carries an
// optional Chain index extending the reference to a secondary channel
// group; chain positions start at 1 and zero means no chaining. When
// nonzero, the chain index is the first byte of the channel's encoding.
type Channel interface {
	// Magic returns the tag bits OR'd into the action byte for commands
	// addressing this channel form. It depends only on the variant, not on
	// the chain index.
	Magic() byte

	chainIndex() uint8
	encode(w *Writer) error
}

// ChannelID addresses a single channel by id (0-15 within a chain group).
type ChannelID struct {
	ID    uint8
	Chain uint8
}

func (c ChannelID) Magic() byte       { return magicSingle }
func (c ChannelID) chainIndex() uint8 { return c.Chain }

func (c ChannelID) encode(w *Writer) error {
	return w.writeBytes(magicChannelID | c.ID)
}

// ChannelMask8 addresses up to 8 channels at once via bitmask.
type ChannelMask8 struct {
	Mask  uint8
	Chain uint8
}

func (c ChannelMask8) Magic() byte       { return magicMask8 }
func (c ChannelMask8) chainIndex() uint8 { return c.Chain }

func (c ChannelMask8) encode(w *Writer) error {
	return w.writeBytes(c.Mask)
}

// ChannelMask16 addresses up to 16 channels at once via bitmask.
type ChannelMask16 struct {
	Mask  uint16
	Chain uint8
}

func (c ChannelMask16) Magic() byte       { return magicMask16 }
func (c ChannelMask16) chainIndex() uint8 { return c.Chain }

func (c ChannelMask16) encode(w *Writer) error {
	return w.writeBytes(byte(c.Mask>>8), byte(c.Mask))
}

// WriteChannel encodes ch: the chain index when nonzero, then the
// variant-specific bytes. It emits 1 to 3 bytes.
func WriteChannel(w *Writer, ch Channel) (int, error) {
	m := w.mark()
	if ci := ch.chainIndex(); ci > 0 {
		if err := w.writeBytes(ci); err != nil {
			return 0, err
		}
	}
	if err := ch.encode(w); err != nil {
		w.rewind(m)
		return 0, err
	}
	return w.off - m, nil
}
