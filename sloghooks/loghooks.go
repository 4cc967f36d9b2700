package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/strictenc"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	EncodeRejectEvery uint64
	DecodeRejectEvery uint64
	SelfHealEvery     uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	encodeRejectCtr atomic.Uint64
	decodeRejectCtr atomic.Uint64
	selfHealCtr     atomic.Uint64
}

var _ strictenc.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) EncodeRejected(codec string, err error) {
	if h.l == nil || !sample(h.opts.EncodeRejectEvery, &h.encodeRejectCtr) {
		return
	}
	h.l.Debug("strictenc.encode_rejected",
		"codec", codec,
		"err", err)
}

func (h *Hooks) DecodeRejected(codec string, size int, err error) {
	if h.l == nil || !sample(h.opts.DecodeRejectEvery, &h.decodeRejectCtr) {
		return
	}
	h.l.Info("strictenc.decode_rejected",
		"codec", codec,
		"size", size,
		"err", err)
}

func (h *Hooks) SchemaSelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Warn("strictenc.schema_self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) SchemaSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("strictenc.schema_set_rejected",
		"key", h.redact(storageKey))
}
