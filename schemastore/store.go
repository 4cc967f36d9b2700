// Package schemastore publishes type descriptions under their identifiers so
// that two parties can agree on a layout before exchanging values.
//
// Keys:
//
//	schema:<ns>:<id hex>      - framed declaration closure of one type
//	alias:<ns>:<lib>.<name>   - identifier a declared name had when stored
//
// Entries are verified on every read: the frame, the decoded declarations,
// and the identifier recomputed from them must all agree with the key.
// Anything that fails is deleted (self-heal) and reported as a miss.
package schemastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/strictenc"
	"github.com/unkn0wn-root/strictenc/internal/util"
	"github.com/unkn0wn-root/strictenc/internal/wire"
	pr "github.com/unkn0wn-root/strictenc/provider"
)

const defaultMaxSize = 1 << 20

type Options struct {
	// Namespace isolates one application's schemas, e.g. "app:prod". Required.
	Namespace string
	// Provider is the byte store. Required.
	Provider pr.Provider
	// TTL for stored entries; 0 = no expiry.
	TTL time.Duration
	// MaxSize bounds the encoded declarations read back; default 1 MiB.
	MaxSize int
	// Logger is optional; nil disables logging.
	Logger strictenc.Logger
	// Hooks is optional; nil means strictenc.NopHooks.
	Hooks strictenc.Hooks
}

type Store struct {
	ns       string
	provider pr.Provider
	ttl      time.Duration
	max      int
	log      strictenc.Logger
	hooks    strictenc.Hooks
}

// Schema is one stored description: the root type name and a library that
// holds it and everything it references.
type Schema struct {
	ID   strictenc.TypeID
	Root string
	Lib  *strictenc.Library
}

func New(opts Options) (*Store, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("schemastore: provider is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("schemastore: namespace is required")
	}
	s := &Store{
		ns:       opts.Namespace,
		provider: opts.Provider,
		ttl:      opts.TTL,
		max:      defaultMaxSize,
		log:      strictenc.NopLogger{},
		hooks:    strictenc.NopHooks{},
	}
	if opts.MaxSize > 0 {
		s.max = opts.MaxSize
	}
	if opts.Logger != nil {
		s.log = opts.Logger
	}
	if opts.Hooks != nil {
		s.hooks = opts.Hooks
	}
	return s, nil
}

func (s *Store) schemaKey(id strictenc.TypeID) string { return util.SchemaKey(s.ns, id) }

func (s *Store) aliasKey(lib, name string) string { return util.AliasKey(s.ns, lib, name) }

// Put publishes the closure of lib's type name and returns its identifier.
// Storing the same type again is harmless: the key is its identifier.
func (s *Store) Put(ctx context.Context, lib *strictenc.Library, name string) (strictenc.TypeID, error) {
	id, err := lib.ID(name)
	if err != nil {
		return strictenc.TypeID{}, err
	}
	names, err := lib.Closure(name)
	if err != nil {
		return strictenc.TypeID{}, err
	}
	w := strictenc.NewBufferWriter(s.max)
	if err := strictenc.EncodeDecls(w, lib, names); err != nil {
		return strictenc.TypeID{}, err
	}
	frame, err := wire.EncodeSchema(id, name, w.Bytes())
	if err != nil {
		return strictenc.TypeID{}, err
	}

	k := s.schemaKey(id)
	ok, err := s.provider.Set(ctx, k, frame, int64(len(frame)), s.ttl)
	if err != nil {
		return strictenc.TypeID{}, err
	}
	if !ok {
		s.hooks.SchemaSetRejected(k)
		s.log.Debug("schema set rejected by provider (pressure)", strictenc.Fields{"key": k})
		return id, nil
	}

	ak := s.aliasKey(lib.Name(), name)
	ok, err = s.provider.Set(ctx, ak, wire.EncodeAlias(id), 1, s.ttl)
	if err != nil {
		return strictenc.TypeID{}, err
	}
	if !ok {
		s.hooks.SchemaSetRejected(ak)
	}
	return id, nil
}

// Get returns the schema stored under id. A miss, or an entry that failed
// verification and was removed, is (nil, false, nil).
func (s *Store) Get(ctx context.Context, id strictenc.TypeID) (*Schema, bool, error) {
	k := s.schemaKey(id)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	gotID, root, payload, err := wire.DecodeSchema(raw)
	if err != nil {
		s.selfHeal(ctx, k, "corrupt", err)
		return nil, false, nil
	}
	if gotID != id {
		s.selfHeal(ctx, k, "id_mismatch", fmt.Errorf("frame carries %x", gotID))
		return nil, false, nil
	}
	lib, err := s.decode(payload)
	if err != nil {
		s.selfHeal(ctx, k, "decode_error", err)
		return nil, false, nil
	}
	// The identifier is recomputed, never trusted from the frame.
	computed, err := lib.ID(root)
	if err != nil {
		s.selfHeal(ctx, k, "decode_error", err)
		return nil, false, nil
	}
	if computed != id {
		s.selfHeal(ctx, k, "id_mismatch", fmt.Errorf("declarations identify as %s", computed))
		return nil, false, nil
	}
	return &Schema{ID: id, Root: root, Lib: lib}, true, nil
}

func (s *Store) decode(payload []byte) (*strictenc.Library, error) {
	if len(payload) > s.max {
		return nil, fmt.Errorf("%w: schema of %d bytes > %d", strictenc.ErrReadLimit, len(payload), s.max)
	}
	r := strictenc.NewReader(payload, s.max)
	lib, err := strictenc.DecodeDecls(r)
	if err != nil {
		return nil, err
	}
	if r.Remaining() > 0 {
		return nil, strictenc.ErrTrailingData
	}
	return lib, nil
}

// Lookup returns the identifier last stored for lib.name.
func (s *Store) Lookup(ctx context.Context, lib, name string) (strictenc.TypeID, bool, error) {
	k := s.aliasKey(lib, name)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return strictenc.TypeID{}, false, err
	}
	id, err := wire.DecodeAlias(raw)
	if err != nil {
		s.selfHeal(ctx, k, "corrupt", err)
		return strictenc.TypeID{}, false, nil
	}
	return id, true, nil
}

// ErrDisagree is returned by Agree when the peer's identifier differs from
// the local one.
var ErrDisagree = errors.New("schemastore: type identifiers disagree")

// Agree is the handshake check: it succeeds when the local declaration of
// name has identifier peer. On disagreement the error names both sides and,
// when the peer's schema is published, its root type.
func (s *Store) Agree(ctx context.Context, peer strictenc.TypeID, lib *strictenc.Library, name string) error {
	local, err := lib.ID(name)
	if err != nil {
		return err
	}
	if local == peer {
		return nil
	}
	remote, ok, err := s.Get(ctx, peer)
	if err != nil {
		return err
	}
	fields := strictenc.Fields{"type": name, "local": local.String(), "peer": peer.String()}
	if ok {
		fields["peer_root"] = remote.Root
		s.log.Warn("schema disagreement", fields)
		return fmt.Errorf("%w: local %s is %s, peer has %s (%s)", ErrDisagree, name, local, remote.Root, peer)
	}
	s.log.Warn("schema disagreement", fields)
	return fmt.Errorf("%w: local %s is %s, peer has unpublished %s", ErrDisagree, name, local, peer)
}

// Del removes the schema stored under id (best-effort).
func (s *Store) Del(ctx context.Context, id strictenc.TypeID) error {
	return s.provider.Del(ctx, s.schemaKey(id))
}

func (s *Store) Close(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Close(ctx)
	}
	return nil
}

func (s *Store) selfHeal(ctx context.Context, key, reason string, cause error) {
	if err := s.provider.Del(ctx, key); err != nil {
		s.log.Warn("schema self-heal delete failed", strictenc.Fields{"key": key, "err": err})
	}
	s.log.Debug("schema self-heal", strictenc.Fields{"key": key, "reason": reason, "err": cause})
	s.hooks.SchemaSelfHeal(key, reason)
}
