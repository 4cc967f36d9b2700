package strictenc

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterLimitIsAtomic(t *testing.T) {
	var sink bytes.Buffer
	w := NewWriter(&sink, 4)
	if err := w.WriteRaw([]byte{1, 2, 3}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	err := w.WriteRaw([]byte{4, 5})
	if !errors.Is(err, ErrWriteLimit) {
		t.Fatalf("expected ErrWriteLimit, got %v", err)
	}
	if w.Count() != 3 || sink.Len() != 3 {
		t.Fatalf("rejected write leaked: count=%d sink=%d", w.Count(), sink.Len())
	}
	if err := w.WriteRaw([]byte{4}); err != nil {
		t.Fatalf("write up to the limit: %v", err)
	}
	if w.Count() != 4 || w.Limit() != 4 {
		t.Fatalf("count=%d limit=%d", w.Count(), w.Limit())
	}
}

func TestBufferWriterAndCounter(t *testing.T) {
	w := NewBufferWriter(0)
	_ = w.WriteU32(7)
	if !bytes.Equal(w.Bytes(), []byte{7, 0, 0, 0}) {
		t.Fatalf("bytes %x", w.Bytes())
	}
	c := NewCounter(0)
	_ = c.WriteU64(1)
	_ = c.WriteU8(1)
	if c.Count() != 9 || c.Bytes() != nil {
		t.Fatalf("counter: count=%d bytes=%v", c.Count(), c.Bytes())
	}
}

type shortSink struct{}

func (shortSink) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestWriterShortSink(t *testing.T) {
	w := NewWriter(shortSink{}, 0)
	if err := w.WriteRaw([]byte{1, 2}); err == nil {
		t.Fatalf("short write should fail")
	}
}

func TestReaderEOFIsAtomic(t *testing.T) {
	r := NewReader([]byte{1, 2, 3}, 0)
	if _, err := r.ReadRaw(2); err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	_, err := r.ReadRaw(2)
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
	if r.Offset() != 2 || r.Remaining() != 1 {
		t.Fatalf("failed read moved the cursor: off=%d rem=%d", r.Offset(), r.Remaining())
	}
	if _, err := r.ReadRaw(-1); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("negative read: %v", err)
	}
}

func TestReaderLimit(t *testing.T) {
	r := NewReader(make([]byte, 16), 8)
	if _, err := r.ReadRaw(8); err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if _, err := r.ReadRaw(1); !errors.Is(err, ErrReadLimit) {
		t.Fatalf("expected ErrReadLimit, got %v", err)
	}
}
