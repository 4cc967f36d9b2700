package strictenc

import (
	"bytes"
	"fmt"
	"io"
)

// Writer is the append-only sink every encoder writes through. It counts the
// bytes it commits and, when constructed with a positive limit, refuses any
// write that would take the count past that limit before the sink sees a
// single byte of it.
//
// A Writer belongs to one top-level encode call and must not be shared
// between goroutines.
type Writer struct {
	sink  io.Writer
	buf   *bytes.Buffer // non-nil for in-memory writers
	count int
	limit int
}

// NewWriter wraps sink. limit <= 0 disables the ceiling.
func NewWriter(sink io.Writer, limit int) *Writer {
	return &Writer{sink: sink, limit: limit}
}

// NewBufferWriter returns a Writer collecting output in memory; read it with
// Bytes once encoding is complete.
func NewBufferWriter(limit int) *Writer {
	b := new(bytes.Buffer)
	return &Writer{sink: b, buf: b, limit: limit}
}

// NewCounter returns a Writer that discards everything and only counts.
// Used to measure a value's serialized size.
func NewCounter(limit int) *Writer {
	return &Writer{sink: io.Discard, limit: limit}
}

// WriteRaw commits p in full or not at all.
func (w *Writer) WriteRaw(p []byte) error {
	if w.limit > 0 && len(p) > w.limit-w.count {
		return fmt.Errorf("%w: %d + %d > %d", ErrWriteLimit, w.count, len(p), w.limit)
	}
	n, err := w.sink.Write(p)
	w.count += n
	if err != nil {
		return fmt.Errorf("strictenc: sink write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("strictenc: sink write: %w", io.ErrShortWrite)
	}
	return nil
}

// Count is the number of bytes committed so far.
func (w *Writer) Count() int { return w.count }

// Limit is the configured ceiling, or 0 when unlimited.
func (w *Writer) Limit() int { return w.limit }

// Bytes returns the collected output of an in-memory writer and nil for any
// other sink. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	if w.buf == nil {
		return nil
	}
	return w.buf.Bytes()
}

// Reader is a forward-only cursor over an encoded byte sequence. Like
// Writer it may carry a ceiling on the number of bytes consumed, which
// bounds the work a hostile input can cause independently of its length.
type Reader struct {
	data  []byte
	off   int
	limit int
}

// NewReader reads from data. limit <= 0 disables the ceiling.
func NewReader(data []byte, limit int) *Reader {
	return &Reader{data: data, limit: limit}
}

// ReadRaw consumes exactly n bytes. The returned slice aliases the input;
// callers that keep it past the decode call must copy it. On failure the
// cursor does not move.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative read of %d bytes", ErrUnexpectedEOF, n)
	}
	if r.limit > 0 && n > r.limit-r.off {
		return nil, fmt.Errorf("%w: %d + %d > %d", ErrReadLimit, r.off, n, r.limit)
	}
	if n > len(r.data)-r.off {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrUnexpectedEOF, n, r.off, len(r.data)-r.off)
	}
	p := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return p, nil
}

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Offset is the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// consumed returns the bytes read between offset from and the cursor.
// Canonical-order checks compare these spans instead of re-encoding.
func (r *Reader) consumed(from int) []byte {
	return r.data[from:r.off]
}
