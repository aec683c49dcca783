package lor

// WriteHeartbeat writes the fixed 3-byte keepalive. Senders must emit it
// periodically (every 500 ms is customary) or controllers stop listening.
func WriteHeartbeat(w *Writer) (int, error) {
	if err := w.writeBytes(byte(UnitBroadcast), magicAnd, magicHeartbeat); err != nil {
		return 0, err
	}
	return 3, nil
}

// WriteBrightness writes a raw protocol brightness value.
func WriteBrightness(w *Writer, b Brightness) (int, error) {
	if err := w.writeBytes(byte(b)); err != nil {
		return 0, err
	}
	return 1, nil
}

// WriteBrightnessf applies curve to normal and writes the result.
func WriteBrightnessf(w *Writer, normal float64, curve Curve) (int, error) {
	return WriteBrightness(w, curve(normal))
}

// WriteDuration writes a tick count big-endian, high byte first.
func WriteDuration(w *Writer, d Duration) (int, error) {
	if err := w.writeBytes(byte(d>>8), byte(d)); err != nil {
		return 0, err
	}
	return 2, nil
}

// WriteDurationf converts seconds with DurationOf and writes the result.
func WriteDurationf(w *Writer, seconds float64) (int, error) {
	return WriteDuration(w, DurationOf(seconds))
}

// WriteUnitAction writes a 2-byte unit-level command: unit, action.
func WriteUnitAction(w *Writer, unit Unit, action UnitAction) (int, error) {
	if err := w.writeBytes(byte(unit), byte(action)); err != nil {
		return 0, err
	}
	return 2, nil
}

// WriteChannelAction writes a channel-targeted command with no parameters:
// unit, action byte, channel encoding.
func WriteChannelAction(w *Writer, unit Unit, action ChannelAction, ch Channel) (int, error) {
	m := w.mark()
	if err := w.writeBytes(byte(unit), ch.Magic()|byte(action)); err != nil {
		return 0, err
	}
	if _, err := WriteChannel(w, ch); err != nil {
		w.rewind(m)
		return 0, err
	}
	return w.off - m, nil
}

// WriteChannelSetBrightness writes: unit, action byte, brightness, channel
// encoding.
func WriteChannelSetBrightness(w *Writer, unit Unit, ch Channel, to Brightness) (int, error) {
	m := w.mark()
	if err := w.writeBytes(byte(unit), ch.Magic()|byte(ChannelSetBrightness), byte(to)); err != nil {
		return 0, err
	}
	if _, err := WriteChannel(w, ch); err != nil {
		w.rewind(m)
		return 0, err
	}
	return w.off - m, nil
}

// WriteChannelFade writes: unit, action byte, from, to, duration (2 bytes),
// channel encoding.
func WriteChannelFade(w *Writer, unit Unit, ch Channel, from, to Brightness, d Duration) (int, error) {
	m := w.mark()
	if err := w.writeBytes(byte(unit), ch.Magic()|byte(ChannelFade), byte(from), byte(to), byte(d>>8), byte(d)); err != nil {
		return 0, err
	}
	if _, err := WriteChannel(w, ch); err != nil {
		w.rewind(m)
		return 0, err
	}
	return w.off - m, nil
}

// WriteChannelFadeWith writes two chained sub-commands as one transmission:
// a foreground action on ch, then a fade, joined by the AND separator. The
// channel encoding appears once, after the foreground action byte, and is
// shared by both sub-commands.
func WriteChannelFadeWith(w *Writer, unit Unit, foreground ChannelAction, ch Channel, from, to Brightness, d Duration) (int, error) {
	m := w.mark()
	if err := w.writeBytes(byte(unit), ch.Magic()|byte(foreground)); err != nil {
		return 0, err
	}
	if _, err := WriteChannel(w, ch); err != nil {
		w.rewind(m)
		return 0, err
	}
	if err := w.writeBytes(magicAnd, ch.Magic()|byte(ChannelFade), byte(from), byte(to), byte(d>>8), byte(d)); err != nil {
		w.rewind(m)
		return 0, err
	}
	return w.off - m, nil
}
