package db

import (
	"context"
	"sync"
)

// txHooks collects side effects that must follow the outcome of a transaction.
type txHooks struct {
	mu         sync.Mutex
	onCommit   []func()
	onRollback []func()
}

type hooksKey struct{}

// WithTxHooks attaches a fresh hook set to ctx. The returned finish function runs the
// commit hooks when err is nil and the rollback hooks otherwise, each at most once.
func WithTxHooks(ctx context.Context) (context.Context, func(err error)) {
	h := &txHooks{}
	var once sync.Once
	return context.WithValue(ctx, hooksKey{}, h), func(err error) {
		once.Do(func() { h.run(err) })
	}
}

func (h *txHooks) run(err error) {
	h.mu.Lock()
	fns := h.onCommit
	if err != nil {
		fns = h.onRollback
	}
	h.onCommit, h.onRollback = nil, nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func hooksFrom(ctx context.Context) *txHooks {
	h, _ := ctx.Value(hooksKey{}).(*txHooks)
	return h
}

// AfterCommit defers fn until the transaction carried by ctx commits. Outside a
// transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	h := hooksFrom(ctx)
	if h == nil {
		fn()
		return
	}
	h.mu.Lock()
	h.onCommit = append(h.onCommit, fn)
	h.mu.Unlock()
}

// OnRollback registers fn to undo work when the transaction carried by ctx is rolled
// back, including attempts that are retried. Outside a transaction it does nothing.
func OnRollback(ctx context.Context, fn func()) {
	h := hooksFrom(ctx)
	if h == nil {
		return
	}
	h.mu.Lock()
	h.onRollback = append(h.onRollback, fn)
	h.mu.Unlock()
}
