package client

import (
	"sync"

	"go.uber.org/atomic"
)

// Subscription is returned by observer registrations. Cancel stops delivery
// and may be called more than once.
type Subscription interface {
	Cancel()
}

type subscription struct {
	active *atomic.Bool
	remove func()
	once   sync.Once
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.active.Store(false)
		s.remove()
	})
}

type listener[T any] struct {
	fn     func(T)
	active *atomic.Bool
}

// listenerSet is a multicast set of callbacks. Dispatch works on a snapshot
// so callbacks may subscribe or cancel while being called.
type listenerSet[T any] struct {
	mu     sync.Mutex
	nextID uint64
	items  map[uint64]listener[T]
}

func (l *listenerSet[T]) add(fn func(T)) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.items == nil {
		l.items = make(map[uint64]listener[T])
	}
	id := l.nextID
	l.nextID++
	active := atomic.NewBool(true)
	l.items[id] = listener[T]{fn: fn, active: active}

	return &subscription{
		active: active,
		remove: func() {
			l.mu.Lock()
			delete(l.items, id)
			l.mu.Unlock()
		},
	}
}

func (l *listenerSet[T]) snapshot() []listener[T] {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]listener[T], 0, len(l.items))
	for _, item := range l.items {
		out = append(out, item)
	}
	return out
}

// deliver calls every listener in snapshot with v, skipping cancelled ones.
func deliver[T any](snapshot []listener[T], v T) {
	for _, l := range snapshot {
		if l.active.Load() {
			l.fn(v)
		}
	}
}

// notifier runs callbacks one at a time on its own goroutine, in the order
// they were posted. Posting never blocks.
type notifier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{done: make(chan struct{})}
	n.cond = sync.NewCond(&n.mu)
	go n.run()
	return n
}

func (n *notifier) post(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.queue = append(n.queue, fn)
	n.cond.Signal()
}

// close delivers what is already queued, then stops the goroutine.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.cond.Signal()
	n.mu.Unlock()
	<-n.done
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		fn := n.queue[0]
		n.queue[0] = nil
		n.queue = n.queue[1:]
		n.mu.Unlock()

		fn()
	}
}
