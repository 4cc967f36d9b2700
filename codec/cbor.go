package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/unkn0wn-root/strictenc"
)

// CBOR renders values of one library type as CBOR.
// The zero value is NOT ready to use. Construct with NewCBOR.
//
// Output uses RFC 8949 Core Deterministic encoding, so equal values give
// equal bytes (struct members sorted by key, shortest integer forms).
type CBOR struct {
	schema
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[strictenc.Value] = (*CBOR)(nil)

func NewCBOR(lib *strictenc.Library, name string) (*CBOR, error) {
	s, err := bind(lib, name)
	if err != nil {
		return nil, err
	}
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CBOR{schema: s, enc: em, dec: dm}, nil
}

func (c *CBOR) Encode(v strictenc.Value) ([]byte, error) {
	if err := c.check(v); err != nil {
		return nil, err
	}
	tree, err := toTree(c.schema, c.root, v, "")
	if err != nil {
		return nil, err
	}
	return c.enc.Marshal(tree)
}

func (c *CBOR) Decode(b []byte) (strictenc.Value, error) {
	var tree any
	if err := c.dec.Unmarshal(b, &tree); err != nil {
		return strictenc.Value{}, fmt.Errorf("codec: cbor: %w", err)
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
