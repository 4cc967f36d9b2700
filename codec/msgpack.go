package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/unkn0wn-root/strictenc"
)

// Msgpack renders values of one library type as MessagePack. The zero value
// is not usable; construct with NewMsgpack. Struct members are written with
// sorted keys so equal values give equal bytes.
type Msgpack struct {
	schema
}

var _ Codec[strictenc.Value] = (*Msgpack)(nil)

func NewMsgpack(lib *strictenc.Library, name string) (*Msgpack, error) {
	s, err := bind(lib, name)
	if err != nil {
		return nil, err
	}
	return &Msgpack{schema: s}, nil
}

func (c *Msgpack) Encode(v strictenc.Value) ([]byte, error) {
	if err := c.check(v); err != nil {
		return nil, err
	}
	tree, err := toTree(c.schema, c.root, v, "")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Msgpack) Decode(b []byte) (strictenc.Value, error) {
	r := bytes.NewReader(b)
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)
	tree, err := dec.DecodeInterface()
	if err != nil {
		return strictenc.Value{}, fmt.Errorf("codec: msgpack: %w", err)
	}
	if r.Len() > 0 {
		return strictenc.Value{}, fmt.Errorf("codec: msgpack: %w", strictenc.ErrTrailingData)
	}
	v, err := fromTree(c.schema, c.root, tree, "")
	if err != nil {
		return strictenc.Value{}, err
	}
	if err := c.check(v); err != nil {
		return strictenc.Value{}, err
	}
	return v, nil
}
