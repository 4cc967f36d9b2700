// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/strictenc"
//	"github.com/unkn0wn-root/strictenc/hooks/async"
//	"github.com/unkn0wn-root/strictenc/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    DecodeRejectEvery: 100, // sample logs: ~every 100th rejected input
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	codec, _ := strictenc.ValueCodec(lib, "Order", strictenc.Options{
//	    MaxSize: 64 << 10,
//	    Hooks:   hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/strictenc"
)

type Hooks struct {
	inner strictenc.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ strictenc.Hooks = (*Hooks)(nil)

func New(inner strictenc.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events raised after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) EncodeRejected(c string, err error) { h.try(func() { h.inner.EncodeRejected(c, err) }) }
func (h *Hooks) SchemaSelfHeal(k, r string)         { h.try(func() { h.inner.SchemaSelfHeal(k, r) }) }
func (h *Hooks) SchemaSetRejected(k string)         { h.try(func() { h.inner.SchemaSetRejected(k) }) }
func (h *Hooks) DecodeRejected(c string, n int, err error) {
	h.try(func() { h.inner.DecodeRejected(c, n, err) })
}
