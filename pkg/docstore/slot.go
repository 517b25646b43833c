package docstore

import "sync"

// slot is the conflated broadcast buffer holding the current value for
// observers. It holds nothing, the latest entry, or (once closed) a terminal
// error. A closed slot is never reopened; the loop swaps in a fresh one and
// late messages captured against the old slot are discarded.
//
// Only the message loop publishes and closes. Observers subscribe, receive,
// and unsubscribe concurrently.
type slot[T any] struct {
	mu       sync.Mutex
	has      bool
	cur      entry[T]
	closed   bool
	err      error
	watchers map[*watcher[T]]struct{}
}

// watcher is one observer's view of a slot: a one-element conflated delivery
// channel plus a termination signal.
type watcher[T any] struct {
	ch   chan entry[T]
	done chan struct{}
}

func newSlot[T any]() *slot[T] {
	return &slot[T]{watchers: make(map[*watcher[T]]struct{})}
}

// publish replaces the slot contents and offers the new entry to every
// watcher, conflating: a watcher that has not consumed the previous entry
// sees only the latest. No-op on a closed slot.
func (s *slot[T]) publish(e entry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.has = true
	s.cur = e

	for w := range s.watchers {
		w.offer(e)
	}
}

// current returns the slot's entry, if it has one.
func (s *slot[T]) current() (entry[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cur, s.has
}

// subscribe registers a new watcher. If the slot already holds an entry the
// watcher receives it immediately; if the slot is already closed the watcher
// is born terminated.
func (s *slot[T]) subscribe() *watcher[T] {
	w := &watcher[T]{
		ch:   make(chan entry[T], 1),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(w.done)

		return w
	}

	s.watchers[w] = struct{}{}

	if s.has {
		w.offer(s.cur)
	}

	return w
}

// unsubscribe detaches w without affecting other watchers. Safe to call
// after close.
func (s *slot[T]) unsubscribe(w *watcher[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.watchers, w)
}

// close terminates the slot. A nil err is a clean completion (store
// shutdown); non-nil is a read failure every current watcher must see.
// Idempotent after the first call.
func (s *slot[T]) close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	s.err = err

	for w := range s.watchers {
		close(w.done)
	}

	s.watchers = nil
}

// isClosed reports whether the slot has terminated.
func (s *slot[T]) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// closeErr returns the terminal error, nil before close or after a clean one.
func (s *slot[T]) closeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// offer delivers e on the watcher's one-element channel, displacing an
// unconsumed previous entry. With the loop as sole publisher the second
// attempt always succeeds.
func (w *watcher[T]) offer(e entry[T]) {
	for {
		select {
		case w.ch <- e:
			return
		default:
			select {
			case <-w.ch:
			default:
			}
		}
	}
}
