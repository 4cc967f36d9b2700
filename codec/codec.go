// Package codec holds the secondary, human-facing renderings of strict
// values: JSON, CBOR, MessagePack and protobuf Struct adapters driven by a
// library description. They reuse the description's field order and bounds
// but are not canonical byte for byte; the strict encoding in the parent
// package remains the only wire format.
package codec

// Codec encodes/decodes values V to []byte. *strictenc.Codec satisfies it
// as well as every adapter here.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
