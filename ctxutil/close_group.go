// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"os"
	"sync"
)

// CloseGroup tracks a set of goroutines that share a common lifetime context.
// Zero value is ready to use.
type CloseGroup struct {
	closeCtx  context.Context
	causeFunc context.CancelCauseFunc

	wg sync.WaitGroup

	once sync.Once
}

func (cg *CloseGroup) init() {
	cg.closeCtx, cg.causeFunc = context.WithCancelCause(context.Background())
}

// Close cancels the group context and waits for all goroutines to return.
func (cg *CloseGroup) Close() {
	cg.once.Do(cg.init)
	cg.causeFunc(os.ErrClosed)
	cg.wg.Wait()
}

// Wait waits for all goroutines to return without canceling them.
func (cg *CloseGroup) Wait() {
	cg.wg.Wait()
}

func (cg *CloseGroup) Context() context.Context {
	cg.once.Do(cg.init)
	return cg.closeCtx
}

// Go runs f in a new goroutine with a context that is canceled when either
// the group is closed or the parent context is canceled.
func (cg *CloseGroup) Go(parent context.Context, f func(ctx context.Context)) {
	cg.once.Do(cg.init)

	ctx, cancel := context.WithCancelCause(parent)
	stop := context.AfterFunc(cg.closeCtx, func() {
		cancel(context.Cause(cg.closeCtx))
	})

	cg.wg.Add(1)
	go func() {
		defer cg.wg.Done()
		defer cancel(nil)
		defer stop()

		f(ctx)
	}()
}
