package lor

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteHeartbeat(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)
	n, err := WriteHeartbeat(w)
	if err != nil {
		t.Fatalf("WriteHeartbeat: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
	want := []byte{0xFF, 0x81, 0x56}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("bytes = %X, want %X", w.Bytes(), want)
	}
}

func TestWriteUnitAction(t *testing.T) {
	tests := []struct {
		name   string
		unit   Unit
		action UnitAction
	}{
		{"unit 1 off", 0x01, UnitOff},
		{"unit 1 on", 0x01, UnitOn},
		{"unit 240 off", 0xF0, UnitOff},
		{"broadcast on", UnitBroadcast, UnitOn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 8)
			w := NewWriter(buf)
			n, err := WriteUnitAction(w, tt.unit, tt.action)
			if err != nil {
				t.Fatalf("WriteUnitAction: %v", err)
			}
			if n != 2 {
				t.Errorf("n = %d, want 2", n)
			}
			want := []byte{byte(tt.unit), byte(tt.action)}
			if !bytes.Equal(w.Bytes(), want) {
				t.Errorf("bytes = %X, want %X", w.Bytes(), want)
			}
		})
	}
}

func TestWriteDurationBigEndian(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWriter(buf)
	if _, err := WriteDuration(w, 0x0102); err != nil {
		t.Fatalf("WriteDuration: %v", err)
	}
	if !bytes.Equal(w.Bytes(), []byte{0x01, 0x02}) {
		t.Errorf("bytes = %X, want 0102", w.Bytes())
	}
}

func TestWriteDurationRoundTrip(t *testing.T) {
	for _, d := range []Duration{0, 1, 0x00FF, 0x0100, 0xABCD, 0xFFFF} {
		buf := make([]byte, 2)
		w := NewWriter(buf)
		if _, err := WriteDuration(w, d); err != nil {
			t.Fatalf("WriteDuration(%#04X): %v", uint16(d), err)
		}
		got := Duration(buf[0])<<8 | Duration(buf[1])
		if got != d {
			t.Errorf("round trip %#04X -> %#04X", uint16(d), uint16(got))
		}
	}
}

func TestWriteBrightness(t *testing.T) {
	buf := make([]byte, 1)
	w := NewWriter(buf)
	n, err := WriteBrightness(w, 0xA5)
	if err != nil || n != 1 {
		t.Fatalf("WriteBrightness: n=%d err=%v", n, err)
	}
	if buf[0] != 0xA5 {
		t.Errorf("byte = %#02X, want A5", buf[0])
	}
}

func TestWriteBrightnessf(t *testing.T) {
	buf := make([]byte, 1)
	w := NewWriter(buf)
	if _, err := WriteBrightnessf(w, 1.0, CurveLinear); err != nil {
		t.Fatalf("WriteBrightnessf: %v", err)
	}
	if buf[0] != byte(BrightnessFull) {
		t.Errorf("byte = %#02X, want %#02X", buf[0], byte(BrightnessFull))
	}
}

func TestWriteChannelAction(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)
	n, err := WriteChannelAction(w, 0x01, ChannelOn, ChannelID{ID: 2, Chain: 3})
	if err != nil {
		t.Fatalf("WriteChannelAction: %v", err)
	}
	// unit, magic|on, chain, id-tag|id
	want := []byte{0x01, 0x01, 0x03, 0x82}
	if n != len(want) || !bytes.Equal(w.Bytes(), want) {
		t.Errorf("n=%d bytes=%X, want n=%d bytes=%X", n, w.Bytes(), len(want), want)
	}
}

func TestWriteChannelSetBrightness(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)
	n, err := WriteChannelSetBrightness(w, 0x02, ChannelMask8{Mask: 0xAA, Chain: 1}, 0x10)
	if err != nil {
		t.Fatalf("WriteChannelSetBrightness: %v", err)
	}
	// unit, mask8-magic|set, brightness, chain, mask
	want := []byte{0x02, 0x33, 0x10, 0x01, 0xAA}
	if n != len(want) || !bytes.Equal(w.Bytes(), want) {
		t.Errorf("n=%d bytes=%X, want n=%d bytes=%X", n, w.Bytes(), len(want), want)
	}
}

func TestWriteChannelFade(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	n, err := WriteChannelFade(w, 0x03, ChannelMask16{Mask: 0x0102}, BrightnessDim, BrightnessFull, 0x0102)
	if err != nil {
		t.Fatalf("WriteChannelFade: %v", err)
	}
	// unit, mask16-magic|fade, from, to, duration hi/lo, mask hi/lo
	want := []byte{0x03, 0x54, 0xF0, 0x01, 0x01, 0x02, 0x01, 0x02}
	if n != len(want) || !bytes.Equal(w.Bytes(), want) {
		t.Errorf("n=%d bytes=%X, want n=%d bytes=%X", n, w.Bytes(), len(want), want)
	}
}

func TestWriteChannelFadeWith(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	n, err := WriteChannelFadeWith(w, 0x01, ChannelOff, ChannelID{ID: 7}, 128, 255, DurationOf(5.0))
	if err != nil {
		t.Fatalf("WriteChannelFadeWith: %v", err)
	}
	// unit, magic|off, channel, AND, magic|fade, from, to, duration hi/lo.
	// The channel encoding appears once, shared by both sub-commands.
	want := []byte{0x01, 0x02, 0x87, 0x81, 0x04, 0x80, 0xFF, 0x00, 0x32}
	if n != len(want) || !bytes.Equal(w.Bytes(), want) {
		t.Errorf("n=%d bytes=%X, want n=%d bytes=%X", n, w.Bytes(), len(want), want)
	}
}

func TestComposersIdempotent(t *testing.T) {
	ch := ChannelMask16{Mask: 0xBEEF, Chain: 2}
	run := func() []byte {
		buf := make([]byte, 32)
		w := NewWriter(buf)
		if _, err := WriteChannelFadeWith(w, 0x10, ChannelShimmer, ch, 0x20, 0x30, 0x0400); err != nil {
			t.Fatalf("compose: %v", err)
		}
		if _, err := WriteChannelSetBrightness(w, 0x10, ch, 0x7F); err != nil {
			t.Fatalf("compose: %v", err)
		}
		return w.Bytes()
	}
	if !bytes.Equal(run(), run()) {
		t.Error("identical arguments produced different output")
	}
}

func TestWriterChaining(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)
	n1, err := WriteUnitAction(w, 0x01, UnitOn)
	if err != nil {
		t.Fatalf("first message: %v", err)
	}
	n2, err := WriteHeartbeat(w)
	if err != nil {
		t.Fatalf("second message: %v", err)
	}
	if w.Len() != n1+n2 {
		t.Errorf("Len() = %d, want %d", w.Len(), n1+n2)
	}
	want := []byte{0x01, 0x42, 0xFF, 0x81, 0x56}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("bytes = %X, want %X", w.Bytes(), want)
	}
}

func TestShortBuffer(t *testing.T) {
	ch := ChannelMask16{Mask: 0xFFFF, Chain: 1}
	composers := []struct {
		name string
		size int // full encoded size
		fn   func(w *Writer) (int, error)
	}{
		{"heartbeat", 3, func(w *Writer) (int, error) { return WriteHeartbeat(w) }},
		{"unit action", 2, func(w *Writer) (int, error) { return WriteUnitAction(w, 1, UnitOff) }},
		{"channel action", 5, func(w *Writer) (int, error) { return WriteChannelAction(w, 1, ChannelOn, ch) }},
		{"set brightness", 6, func(w *Writer) (int, error) { return WriteChannelSetBrightness(w, 1, ch, 0x40) }},
		{"fade", 9, func(w *Writer) (int, error) { return WriteChannelFade(w, 1, ch, 0x10, 0x20, 30) }},
		{"fade with", 11, func(w *Writer) (int, error) { return WriteChannelFadeWith(w, 1, ChannelOff, ch, 0x10, 0x20, 30) }},
	}

	for _, tt := range composers {
		t.Run(tt.name, func(t *testing.T) {
			// Full size succeeds.
			w := NewWriter(make([]byte, tt.size))
			n, err := tt.fn(w)
			if err != nil || n != tt.size {
				t.Fatalf("full buffer: n=%d err=%v, want n=%d err=nil", n, err, tt.size)
			}

			// Every smaller size fails and leaves the writer untouched.
			for size := 0; size < tt.size; size++ {
				w := NewWriter(make([]byte, size))
				n, err := tt.fn(w)
				if !errors.Is(err, ErrShortBuffer) {
					t.Fatalf("size %d: err = %v, want ErrShortBuffer", size, err)
				}
				if n != 0 || w.Len() != 0 {
					t.Errorf("size %d: n=%d Len=%d after failure, want 0", size, n, w.Len())
				}
			}
		})
	}
}

func TestMaxMessageLen(t *testing.T) {
	// Worst case: fade-with addressing a chained 16-bit mask.
	w := NewWriter(make([]byte, MaxMessageLen))
	n, err := WriteChannelFadeWith(w, 0xF0, ChannelTwinkle, ChannelMask16{Mask: 0xFFFF, Chain: 0xFF}, 0xF0, 0x01, 0xFFFF)
	if err != nil {
		t.Fatalf("worst case does not fit in MaxMessageLen: %v", err)
	}
	if n > MaxMessageLen {
		t.Errorf("n = %d exceeds MaxMessageLen %d", n, MaxMessageLen)
	}
}
