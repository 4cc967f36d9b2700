package strictenc

import (
	"fmt"
	"io"
)

// Serialize encodes v into a fresh buffer. limit <= 0 means unlimited.
func Serialize(v Encoder, limit int) ([]byte, error) {
	w := NewBufferWriter(limit)
	if err := v.StrictEncode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize decodes data into v and requires every byte to be consumed.
func Deserialize(data []byte, v Decoder, limit int) error {
	r := NewReader(data, limit)
	if err := v.StrictDecode(r); err != nil {
		return err
	}
	return finish(r)
}

// SerializedLen is the exact size Serialize would produce, computed
// without keeping the output.
func SerializedLen(v Encoder, limit int) (int, error) {
	w := NewCounter(limit)
	if err := v.StrictEncode(w); err != nil {
		return 0, err
	}
	return w.Count(), nil
}

func finish(r *Reader) error {
	if n := r.Remaining(); n > 0 {
		return fmt.Errorf("%w: %d bytes left at offset %d", ErrTrailingData, n, r.Offset())
	}
	return nil
}

// Options configures a Codec. The zero value is usable.
type Options struct {
	// Name labels the codec in logs and hook events.
	Name string
	// MaxSize caps the encoded size and the input accepted by Decode.
	// 0 means unlimited.
	MaxSize int
	// Logger is optional; nil disables logging.
	Logger Logger
	// Hooks is optional; nil means NopHooks.
	Hooks Hooks
}

// Codec turns values of V into their single strict encoding and back. It
// holds no per-call state and may be shared between goroutines.
type Codec[V any] struct {
	name  string
	max   int
	id    TypeID
	enc   EncodeFunc[V]
	dec   DecodeFunc[V]
	log   Logger
	hooks Hooks
}

// NewCodec builds a codec from an encode/decode pair. Zero Options fields
// take their defaults; a negative MaxSize is an error.
func NewCodec[V any](enc EncodeFunc[V], dec DecodeFunc[V], opts Options) (*Codec[V], error) {
	if enc == nil || dec == nil {
		return nil, fmt.Errorf("strictenc: encode and decode functions are required")
	}
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("strictenc: negative MaxSize %d", opts.MaxSize)
	}
	return &Codec[V]{
		name:  coalesce(opts.Name, "strictenc"),
		max:   opts.MaxSize,
		enc:   enc,
		dec:   dec,
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
		hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
	}, nil
}

// For builds a codec for a type whose pointer implements Encoder and
// Decoder, the shape generated code has. Like MustSizing it is meant for
// static setup and panics on invalid options.
func For[V any, P interface {
	*V
	Encoder
	Decoder
}](opts Options) *Codec[V] {
	c, err := NewCodec(
		func(w *Writer, v V) error { return P(&v).StrictEncode(w) },
		func(r *Reader) (V, error) {
			var v V
			err := P(&v).StrictDecode(r)
			return v, err
		},
		opts)
	if err != nil {
		panic(err)
	}
	return c
}

// ValueCodec builds a codec for the library type name over dynamic values.
// The type's closure is validated here, once.
func ValueCodec(lib *Library, name string, opts Options) (*Codec[Value], error) {
	id, err := lib.ID(name)
	if err != nil {
		return nil, err
	}
	root := Ref(name)
	opts.Name = coalesce(opts.Name, name)
	c, err := NewCodec(
		func(w *Writer, v Value) error { return EncodeValue(w, root, v, lib) },
		func(r *Reader) (Value, error) { return DecodeValue(r, root, lib) },
		opts)
	if err != nil {
		return nil, err
	}
	c.id = id
	return c, nil
}

// Name labels the codec in logs and hook events.
func (c *Codec[V]) Name() string { return c.name }

// ID is the identifier of the described type, zero for codecs not built
// from a library.
func (c *Codec[V]) ID() TypeID { return c.id }

func (c *Codec[V]) Encode(v V) ([]byte, error) {
	w := NewBufferWriter(c.max)
	if err := c.enc(w, v); err != nil {
		c.rejectEncode(err)
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeTo streams the encoding into dst and returns the bytes written. On
// failure dst may hold a prefix of the encoding.
func (c *Codec[V]) EncodeTo(dst io.Writer, v V) (int, error) {
	w := NewWriter(dst, c.max)
	if err := c.enc(w, v); err != nil {
		c.rejectEncode(err)
		return w.Count(), err
	}
	return w.Count(), nil
}

// Size is the exact encoded length of v.
func (c *Codec[V]) Size(v V) (int, error) {
	w := NewCounter(c.max)
	if err := c.enc(w, v); err != nil {
		return 0, err
	}
	return w.Count(), nil
}

// Decode reads exactly one value from b; trailing bytes are an error.
func (c *Codec[V]) Decode(b []byte) (V, error) {
	var zero V
	if c.max > 0 && len(b) > c.max {
		err := fmt.Errorf("%w: payload %d > %d", ErrReadLimit, len(b), c.max)
		c.rejectDecode(len(b), err)
		return zero, err
	}
	r := NewReader(b, c.max)
	v, err := c.dec(r)
	if err == nil {
		err = finish(r)
	}
	if err != nil {
		c.rejectDecode(len(b), err)
		return zero, err
	}
	return v, nil
}

func (c *Codec[V]) rejectEncode(err error) {
	c.log.Debug("encode rejected", Fields{"codec": c.name, "err": err})
	c.hooks.EncodeRejected(c.name, err)
}

func (c *Codec[V]) rejectDecode(size int, err error) {
	c.log.Debug("decode rejected", Fields{"codec": c.name, "size": size, "err": err})
	c.hooks.DecodeRejected(c.name, size, err)
}
