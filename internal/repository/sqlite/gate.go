package sqlite

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// gate is the process-wide readiness state: a single boolean cell that is
// broadcast to every subscriber and awaited by every data-access call.
//
// readyCh is closed when the state becomes true, which wakes all waiters at
// once. When the state drops back to false (Close, Reset) a fresh channel
// replaces it.
type gate struct {
	mu      sync.Mutex
	ready   bool
	readyCh chan struct{}
	subs    map[int]chan bool
	nextSub int
}

func newGate() *gate {
	return &gate{
		readyCh: make(chan struct{}),
		subs:    make(map[int]chan bool),
	}
}

func (g *gate) isReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

func (g *gate) set(ready bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ready == ready {
		return
	}
	g.ready = ready
	if ready {
		close(g.readyCh)
	} else {
		g.readyCh = make(chan struct{})
	}

	for _, ch := range g.subs {
		publish(ch, ready)
	}
}

// publish replaces whatever value is buffered in ch with v.
// Only set and subscribe send, both under g.mu, so the send never blocks.
func publish(ch chan bool, v bool) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}

func (g *gate) subscribe() (<-chan bool, func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextSub
	g.nextSub++
	ch := make(chan bool, 1)
	ch <- g.ready
	g.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (g *gate) wait(ctx context.Context, timeout time.Duration) error {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		return nil
	}
	readyCh := g.readyCh
	g.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-readyCh:
		return nil
	case <-timer.C:
		return ErrDatabaseNotReady
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrDatabaseNotReady, ctx.Err())
	}
}
