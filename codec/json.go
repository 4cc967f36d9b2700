package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/unkn0wn-root/strictenc"
)

// JSON renders values of one library type as JSON documents. Bytes travel
// as base64 strings and 128-bit integers as decimal strings; NaN and
// infinite floats cannot be represented and fail to encode.
type JSON struct {
	schema
	Indent string // optional; "" writes compact JSON
}

var _ Codec[strictenc.Value] = (*JSON)(nil)

func NewJSON(lib *strictenc.Library, name string) (*JSON, error) {
	s, err := bind(lib, name)
	if err != nil {
		return nil, err
	}
	return &JSON{schema: s}, nil
}

func (c *JSON) Encode(v strictenc.Value) ([]byte, error) {
	if err := c.check(v); err != nil {
		return nil, err
	}
	tree, err := toTree(c.schema, c.root, v, "")
	if err != nil {
		return nil, err
	}
	if c.Indent != "" {
		return json.MarshalIndent(tree, "", c.Indent)
	}
	return json.Marshal(tree)
}

func (c *JSON) Decode(b []byte) (strictenc.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return strictenc.Value{}, fmt.Errorf("codec: json: %w", err)
	}
	if dec.More() {
		return strictenc.Value{}, fmt.Errorf("codec: json: %w", strictenc.ErrTrailingData)
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
