// Package pool implements a generic connection pool: a bounded idle set plus
// a FIFO queue of waiters, with a builder started concurrently and raced
// against the front waiter slot so a caller never blocks on an idle wait
// once a fresh value is available.
package pool

import (
	"container/list"
	"context"
	"io"
	"sync"
)

// Builder constructs a fresh T on demand. Implementations typically dial a
// network connection; Build should respect ctx cancellation.
type Builder[T any] interface {
	Build(ctx context.Context) (T, error)
}

// BuilderFunc adapts a plain function to Builder.
type BuilderFunc[T any] func(ctx context.Context) (T, error)

func (f BuilderFunc[T]) Build(ctx context.Context) (T, error) { return f(ctx) }

// Pool holds idle values of T and hands them out via Get, reusing an idle
// value when one is available and otherwise racing a waiter slot against a
// freshly built one. max_idle bounds only the idle set; it never bounds how
// many values are on lease at once.
type Pool[T any] struct {
	builder Builder[T]
	maxIdle int

	mu      sync.Mutex
	idle    []T
	waiters *list.List // of chan T, unbuffered
	closed  bool
}

// New creates a Pool that builds new values with builder and keeps at most
// maxIdle idle values around between leases.
func New[T any](builder Builder[T], maxIdle int) *Pool[T] {
	return &Pool[T]{
		builder: builder,
		maxIdle: maxIdle,
		waiters: list.New(),
	}
}

// Get returns a leased value: an idle one if available, otherwise whichever
// of (a) a waiter slot fulfilled by a concurrent Put, or (b) a freshly built
// value, completes first. The builder always runs once an idle miss occurs
// (Go goroutines have no lazy/unstarted state to gate on, unlike the
// original's lazy future), so a waiter win still costs a dial; that dial's
// result is folded back into the pool via Put instead of being discarded.
func (p *Pool[T]) Get(ctx context.Context) (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		v := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return v, nil
	}

	// Unbuffered: a Put can only hand this waiter a value by synchronizing
	// with the receive in the select below. If this waiter has already been
	// popped and abandoned (ctx canceled, or the builder won the race), no
	// one is receiving and Put's non-blocking send falls through instead of
	// stranding the value here.
	waitCh := make(chan T)
	elem := p.waiters.PushBack(waitCh)
	p.mu.Unlock()

	built := make(chan builtResult[T], 1)
	go func() {
		v, err := p.builder.Build(ctx)
		built <- builtResult[T]{v: v, err: err}
	}()

	select {
	case v := <-waitCh:
		// A concurrent Put fulfilled us before the builder returned. Let it
		// finish and fold its result back into the pool rather than leaking
		// it or blocking on it here.
		go func() {
			res := <-built
			if res.err == nil {
				p.Put(res.v)
			}
		}()
		return v, nil
	case res := <-built:
		p.removeWaiter(elem)
		if res.err != nil {
			return zero, res.err
		}
		return res.v, nil
	case <-ctx.Done():
		p.removeWaiter(elem)
		return zero, ctx.Err()
	}
}

type builtResult[T any] struct {
	v   T
	err error
}

// removeWaiter drops elem from the waiter list if it is still queued. Put
// may have already popped it; in that case this is a harmless no-op, and
// Put's non-blocking send against the now-unwatched channel simply falls
// through to the next waiter instead of stranding the value.
func (p *Pool[T]) removeWaiter(elem *list.Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		if e == elem {
			p.waiters.Remove(e)
			return
		}
	}
}

// Put returns v to the pool: to the front waiter if one is queued (skipping
// any whose receiver has gone away), otherwise to the idle set if it has
// room, otherwise v is dropped, and closed first if it implements io.Closer.
func (p *Pool[T]) Put(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.waiters.Len() > 0 {
		front := p.waiters.Front()
		p.waiters.Remove(front)
		ch := front.Value.(chan T)
		select {
		case ch <- v:
			// Succeeds only if Get is still blocked receiving on ch (it's
			// unbuffered); that is exactly the live-waiter case.
			return
		default:
			// Receiver already gave up (context canceled, or the builder won
			// the race and already called removeWaiter); try the next.
			continue
		}
	}

	if !p.closed && len(p.idle) < p.maxIdle {
		p.idle = append(p.idle, v)
		return
	}
	if c, ok := any(v).(io.Closer); ok {
		_ = c.Close()
	}
}

// Drain removes and returns all currently idle values, leaving the pool
// empty of idle entries. Leased values are unaffected; callers typically use
// this during shutdown to close every idle connection.
func (p *Pool[T]) Drain() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := p.idle
	p.idle = nil
	return idle
}

// Close marks the pool closed: further Get calls fail immediately and Put
// stops accepting new idle values. It does not touch already-leased values;
// callers should Drain before or after Close to dispose of idle ones.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}
