package util

import (
	"encoding/hex"
	"strings"
)

// SchemaKey is the storage key of a schema entry: schema:<ns>:<id hex>.
func SchemaKey(ns string, id [32]byte) string {
	var b strings.Builder
	b.Grow(len("schema:") + len(ns) + 1 + 64)
	b.WriteString("schema:")
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(id[:]))
	return b.String()
}

// AliasKey is the storage key of a name alias: alias:<ns>:<lib>.<name>.
func AliasKey(ns, lib, name string) string {
	return "alias:" + ns + ":" + lib + "." + name
}
