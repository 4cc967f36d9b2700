package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version     byte = 1
	kindSchema  byte = 1
	kindAlias   byte = 2
	idLen            = 32
	maxRootName      = 0xFF
)

var (
	ErrCorrupt = errors.New("strictenc: corrupt schema entry")
	magic4     = [...]byte{'S', 'T', 'S', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Schema: magic(4) | ver(1) | kind(1=schema) | id(32) | rlen(u8) | root(rlen) | plen(u32 be) | payload(plen)
//
// payload is a strict-encoded declaration set whose root type is root and
// whose identifier must recompute to id.
func EncodeSchema(id [idLen]byte, root string, payload []byte) ([]byte, error) {
	if l := len(root); l == 0 || l > maxRootName {
		return nil, fmt.Errorf("strictenc: invalid root name length %d", l)
	}
	if uint64(len(payload)) > 0xFFFFFFFF {
		return nil, fmt.Errorf("strictenc: schema payload of %d bytes too large", len(payload))
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + idLen + 1 + len(root) + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindSchema)
	buf.Write(id[:])

	buf.WriteByte(byte(len(root)))
	buf.WriteString(root)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes(), nil
}

// DecodeSchema returns payload as a subslice of b (no copy).
func DecodeSchema(b []byte) (id [idLen]byte, root string, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + idLen + 1
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindSchema {
		return id, "", nil, ErrCorrupt
	}

	off := 6
	copy(id[:], b[off:off+idLen])
	off += idLen

	// root
	rlen := int(b[off])
	off++
	if rlen == 0 || rlen > len(b)-off {
		return id, "", nil, ErrCorrupt
	}
	root = string(b[off : off+rlen])
	off += rlen

	// plen
	if off+4 > len(b) {
		return id, "", nil, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen != len(b)-off { // exact: no trailing bytes
		return id, "", nil, ErrCorrupt
	}

	return id, root, b[off : off+plen], nil
}

// Alias: magic(4) | ver(1) | kind(2=alias) | id(32)
//
// An alias points a declared name at the identifier it had when stored.
func EncodeAlias(id [idLen]byte) []byte {
	b := make([]byte, 0, 4+1+1+idLen)
	b = append(b, magic4[:]...)
	b = append(b, version, kindAlias)
	return append(b, id[:]...)
}

func DecodeAlias(b []byte) (id [idLen]byte, err error) {
	if len(b) != 4+1+1+idLen || !hasMagic(b) || b[4] != version || b[5] != kindAlias {
		return id, ErrCorrupt
	}
	copy(id[:], b[6:])
	return id, nil
}
