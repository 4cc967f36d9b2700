package codec

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/strictenc"
)

// maxExactInt is the largest integer a protobuf NumberValue (a double)
// carries without rounding.
const maxExactInt = 1 << 53

// Proto renders values of one library type as a serialized
// google.protobuf.Value, for systems that only exchange protobuf. Numbers
// travel as doubles, so integers beyond 2^53 are sent as decimal strings;
// bytes travel as base64 strings.
type Proto struct {
	schema
}

var _ Codec[strictenc.Value] = (*Proto)(nil)

func NewProto(lib *strictenc.Library, name string) (*Proto, error) {
	s, err := bind(lib, name)
	if err != nil {
		return nil, err
	}
	return &Proto{schema: s}, nil
}

// Message returns v as a structpb.Value, for embedding in other messages.
func (c *Proto) Message(v strictenc.Value) (*structpb.Value, error) {
	if err := c.check(v); err != nil {
		return nil, err
	}
	tree, err := toTree(c.schema, c.root, v, "")
	if err != nil {
		return nil, err
	}
	return structpb.NewValue(exact(tree))
}

func (c *Proto) Encode(v strictenc.Value) ([]byte, error) {
	m, err := c.Message(v)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(m)
}

func (c *Proto) Decode(b []byte) (strictenc.Value, error) {
	var m structpb.Value
	if err := proto.Unmarshal(b, &m); err != nil {
		return strictenc.Value{}, fmt.Errorf("codec: proto: %w", err)
	}
	return c.FromMessage(&m)
}

// FromMessage rebuilds a value from a structpb.Value.
func (c *Proto) FromMessage(m *structpb.Value) (strictenc.Value, error) {
	v, err := fromTree(c.schema, c.root, m.AsInterface(), "")
	if err != nil {
		return strictenc.Value{}, err
	}
	if err := c.check(v); err != nil {
		return strictenc.Value{}, err
	}
	return v, nil
}

// exact rewrites integers a double cannot hold into decimal strings and
// float32 into float64, the shapes structpb.NewValue accepts losslessly.
func exact(x any) any {
	switch n := x.(type) {
	case uint64:
		if n > maxExactInt {
			return strconv.FormatUint(n, 10)
		}
		return float64(n)
	case int64:
		if n > maxExactInt || n < -maxExactInt {
			return strconv.FormatInt(n, 10)
		}
		return float64(n)
	case float32:
		return float64(n)
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = exact(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, e := range n {
			out[k] = exact(e)
		}
		return out
	}
	return x
}
