package schemastore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	se "github.com/unkn0wn-root/strictenc"
	"github.com/unkn0wn-root/strictenc/internal/util"
	"github.com/unkn0wn-root/strictenc/internal/wire"
	pr "github.com/unkn0wn-root/strictenc/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu     sync.Mutex
	m      map[string]memEntry
	reject bool
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

func (p *memProvider) put(key string, v []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = memEntry{v: v}
}

type recHooks struct {
	se.NopHooks
	mu       sync.Mutex
	heals    []string
	rejected []string
}

func (h *recHooks) SchemaSelfHeal(key, reason string) {
	h.mu.Lock()
	h.heals = append(h.heals, reason)
	h.mu.Unlock()
}

func (h *recHooks) SchemaSetRejected(key string) {
	h.mu.Lock()
	h.rejected = append(h.rejected, key)
	h.mu.Unlock()
}

func testLib() *se.Library {
	return se.NewLibrary("shop").
		MustDeclare("Tree", se.Struct(
			se.F("label", se.Text(se.SizingU8)),
			se.F("children", se.List(se.Ref("Tree"), se.SizingU8)),
		)).
		MustDeclare("Order", se.Struct(
			se.F("id", se.Prim(se.U64)),
			se.F("tree", se.Ref("Tree")),
		)).
		MustDeclare("Unrelated", se.Prim(se.U8))
}

func newTestStore(t *testing.T, mp pr.Provider, h se.Hooks) *Store {
	t.Helper()
	s, err := New(Options{Namespace: "test", Provider: mp, Hooks: h})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewRequiresProviderAndNamespace(t *testing.T) {
	if _, err := New(Options{Namespace: "x"}); err == nil {
		t.Fatalf("expected error without provider")
	}
	if _, err := New(Options{Provider: newMemProvider()}); err == nil {
		t.Fatalf("expected error without namespace")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, nil)
	lib := testLib()

	id, err := s.Put(ctx, lib, "Order")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id != lib.MustID("Order") {
		t.Fatalf("Put returned %s, library says %s", id, lib.MustID("Order"))
	}

	got, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Root != "Order" || got.ID != id {
		t.Fatalf("Get: root=%q id=%s", got.Root, got.ID)
	}
	if got.Lib.Name() != "shop" {
		t.Fatalf("library name %q", got.Lib.Name())
	}
	names := got.Lib.Names()
	if strings.Join(names, ",") != "Tree,Order" {
		t.Fatalf("closure should hold only reachable types, got %v", names)
	}
	if got.Lib.MustID("Tree") != lib.MustID("Tree") {
		t.Fatalf("decoded Tree identifier differs")
	}
}

func TestGetMiss(t *testing.T) {
	s := newTestStore(t, newMemProvider(), nil)
	if got, ok, err := s.Get(context.Background(), se.TypeID{1}); err != nil || ok || got != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestLookupAlias(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	lib := testLib()
	id, err := s.Put(ctx, lib, "Order")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Lookup(ctx, "shop", "Order")
	if err != nil || !ok || got != id {
		t.Fatalf("Lookup: ok=%v err=%v got=%s want=%s", ok, err, got, id)
	}
	if _, ok, _ := s.Lookup(ctx, "shop", "Tree"); ok {
		t.Fatalf("only the stored root gets an alias")
	}
}

func TestSelfHealCorruptFrame(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	h := &recHooks{}
	s := newTestStore(t, mp, h)
	lib := testLib()
	id := lib.MustID("Order")
	key := util.SchemaKey("test", id)

	mp.put(key, []byte("not a frame"))
	if _, ok, err := s.Get(ctx, id); err != nil || ok {
		t.Fatalf("corrupt entry should read as miss, ok=%v err=%v", ok, err)
	}
	if mp.has(key) {
		t.Fatalf("corrupt entry should be deleted")
	}
	if len(h.heals) != 1 || h.heals[0] != "corrupt" {
		t.Fatalf("heals = %v", h.heals)
	}
}

func TestSelfHealIDMismatch(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	h := &recHooks{}
	s := newTestStore(t, mp, h)
	lib := testLib()

	// Store a valid Tree schema under Order's key.
	treeID, err := s.Put(ctx, lib, "Tree")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	raw, _, _ := mp.Get(ctx, util.SchemaKey("test", treeID))
	orderID := lib.MustID("Order")
	orderKey := util.SchemaKey("test", orderID)
	mp.put(orderKey, raw)

	if _, ok, _ := s.Get(ctx, orderID); ok {
		t.Fatalf("mismatched entry should read as miss")
	}
	if mp.has(orderKey) {
		t.Fatalf("mismatched entry should be deleted")
	}

	// A frame claiming the right id over the wrong declarations.
	_, _, payload, err := wire.DecodeSchema(raw)
	if err != nil {
		t.Fatalf("DecodeSchema: %v", err)
	}
	forged, err := wire.EncodeSchema(orderID, "Tree", payload)
	if err != nil {
		t.Fatalf("EncodeSchema: %v", err)
	}
	mp.put(orderKey, forged)
	if _, ok, _ := s.Get(ctx, orderID); ok {
		t.Fatalf("forged entry should read as miss")
	}
	if len(h.heals) != 2 || h.heals[0] != "id_mismatch" || h.heals[1] != "id_mismatch" {
		t.Fatalf("heals = %v", h.heals)
	}
}

func TestSelfHealUndecodable(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	h := &recHooks{}
	s := newTestStore(t, mp, h)
	id := se.TypeID{7}
	frame, err := wire.EncodeSchema(id, "Order", []byte{0xFF, 0xFF})
	if err != nil {
		t.Fatalf("EncodeSchema: %v", err)
	}
	mp.put(util.SchemaKey("test", id), frame)
	if _, ok, _ := s.Get(ctx, id); ok {
		t.Fatalf("undecodable entry should read as miss")
	}
	if len(h.heals) != 1 || h.heals[0] != "decode_error" {
		t.Fatalf("heals = %v", h.heals)
	}
}

func TestPutRejectedUnderPressure(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	mp.reject = true
	h := &recHooks{}
	s := newTestStore(t, mp, h)
	lib := testLib()
	id, err := s.Put(ctx, lib, "Order")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id != lib.MustID("Order") {
		t.Fatalf("Put should still return the identifier")
	}
	if len(h.rejected) != 1 || h.rejected[0] != util.SchemaKey("test", id) {
		t.Fatalf("rejected = %v", h.rejected)
	}
}

func TestPutUnresolvedRef(t *testing.T) {
	s := newTestStore(t, newMemProvider(), nil)
	lib := se.NewLibrary("bad").MustDeclare("A", se.List(se.Ref("Missing"), se.SizingU8))
	if _, err := s.Put(context.Background(), lib, "A"); !errors.Is(err, se.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestAgree(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	lib := testLib()

	if err := s.Agree(ctx, lib.MustID("Order"), lib, "Order"); err != nil {
		t.Fatalf("Agree same id: %v", err)
	}

	// Peer declared Order with a different field order.
	peer := se.NewLibrary("shop").
		MustDeclare("Tree", se.Struct(
			se.F("label", se.Text(se.SizingU8)),
			se.F("children", se.List(se.Ref("Tree"), se.SizingU8)),
		)).
		MustDeclare("Order", se.Struct(
			se.F("tree", se.Ref("Tree")),
			se.F("id", se.Prim(se.U64)),
		))
	peerID, err := s.Put(ctx, peer, "Order")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	err = s.Agree(ctx, peerID, lib, "Order")
	if !errors.Is(err, ErrDisagree) {
		t.Fatalf("expected ErrDisagree, got %v", err)
	}
	if !strings.Contains(err.Error(), peerID.String()) {
		t.Fatalf("error should name the peer id: %v", err)
	}

	err = s.Agree(ctx, se.TypeID{9}, lib, "Order")
	if !errors.Is(err, ErrDisagree) || !strings.Contains(err.Error(), "unpublished") {
		t.Fatalf("expected unpublished disagreement, got %v", err)
	}
}

func TestDel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), nil)
	lib := testLib()
	id, err := s.Put(ctx, lib, "Tree")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Del(ctx, id); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := s.Get(ctx, id); ok {
		t.Fatalf("expected miss after Del")
	}
}
