package strictenc

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; codecs call them on the
// failure path of every rejected value.
type Hooks interface {
	// A value failed to encode (confinement, mismatch, write limit).
	EncodeRejected(codec string, err error)

	// An input was rejected while decoding. size is the input length.
	DecodeRejected(codec string, size int, err error)

	// A stored schema was deleted on read.
	// reason ∈ {"corrupt", "id_mismatch", "decode_error"}
	SchemaSelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	SchemaSetRejected(storageKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) EncodeRejected(string, error)      {}
func (NopHooks) DecodeRejected(string, int, error) {}
func (NopHooks) SchemaSelfHeal(string, string)     {}
func (NopHooks) SchemaSetRejected(string)          {}
