package lor

import "errors"

// ErrShortBuffer is returned when the destination buffer cannot hold the
// bytes a message needs. A failed write leaves the writer unchanged.
var ErrShortBuffer = errors.New("lor: short buffer")

// MaxMessageLen is the documented upper bound on the size of any single
// message a composer emits. Callers that reuse one buffer across composer
// calls should size it to at least this many bytes per message.
const MaxMessageLen = 13

// Writer appends protocol bytes to a caller-owned buffer. It performs no
// allocation; the buffer's lifetime and synchronization belong entirely to
// the caller. Composers write through it and return the byte count so calls
// can be chained into a single buffer.
type Writer struct {
	buf []byte
	off int
}

// NewWriter returns a Writer that fills buf from the start.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.off }

// Bytes returns the written prefix of the underlying buffer.
func (w *Writer) Bytes() []byte { return w.buf[:w.off] }

// Reset rewinds the writer to the start of its buffer.
func (w *Writer) Reset() { w.off = 0 }

func (w *Writer) mark() int     { return w.off }
func (w *Writer) rewind(m int)  { w.off = m }

// writeBytes appends bs atomically: either all bytes fit or none are written.
func (w *Writer) writeBytes(bs ...byte) error {
	if len(w.buf)-w.off < len(bs) {
		return ErrShortBuffer
	}
	w.off += copy(w.buf[w.off:], bs)
	return nil
}
