// Package strictenc implements a deterministic, size-confined binary
// encoding for statically described algebraic types. Every value has
// exactly one encoding, and every variable-length container declares an
// inclusive element-count bound that is enforced on construction, on
// encode and on decode.
//
// Components:
//   - Writer/Reader: byte sink and cursor with an optional byte ceiling.
//     Every codec goes through them.
//   - Primitives: fixed-width little-endian integers (8 to 128 bits),
//     booleans as 0x00/0x01, IEEE-754 floats with NaN bits preserved.
//   - Confined sequences: bytes, text, lists, sets, maps, arrays and
//     options. The length prefix is 1, 2, 4 or 8 bytes wide depending
//     only on the declared maximum.
//   - Composites: structs are their fields back to back; sums are a u8
//     tag followed by the variant payload.
//   - Type identifiers: BLAKE3 keyed hash over the canonical encoding of a
//     structural description (Ty), resolved through a caller-owned Library.
//
// Wire layout:
//
//	bool        01
//	u16 0x0102  02 01
//	list<u8>    <len prefix> <elements...>
//	set, map    elements / entries in ascending order of their encoding
//	union       <tag u8> <payload>
//
// Generated code implements Encoder and Decoder on its types and calls the
// helpers in this package field by field. Code without generated types can
// describe a type with Ty and use EncodeValue/DecodeValue or ValueCodec.
package strictenc
