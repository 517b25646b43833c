package docstore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/calvinalkan/docstore/pkg/fsys"
)

// Store is a typed, single-file, durable document store. It holds exactly
// one value of type T, persists it with an atomic write/rename protocol, and
// fans the current value out to any number of watchers.
//
// All reads and updates are serialized through a single message loop, so for
// any two operations observed in order, the first one's effects are visible
// before the second begins. There is at most one in-flight writer, ever.
//
// A Store is safe for concurrent use by multiple goroutines. Running more
// than one Store (or process) against the same file is unsupported.
type Store[T any] struct {
	path    string
	scratch string

	serializer   Serializer[T]
	onCorruption CorruptionHandler[T]
	initializers []Initializer[T] // loop-owned; dropped after success
	equal        func(a, b T) bool
	fs           fsys.FS
	fileMode     os.FileMode
	log          *slog.Logger

	mbox *mailbox[message[T]]
	slot atomic.Pointer[slot[T]]

	closed   atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// message is one unit of work for the loop: a Read (nil transform) or an
// Update. The slot is the broadcast slot captured at enqueue time; if a
// prior failure terminated it by the time the message is processed, the
// message is discarded.
type message[T any] struct {
	slot      *slot[T]
	transform func(T) (T, error)
	ack       *ack[T]
}

// ack is the single-shot completion handle of an Update.
type ack[T any] struct {
	value T
	err   error
	done  chan struct{}
}

func newAck[T any]() *ack[T] {
	return &ack[T]{done: make(chan struct{})}
}

func (a *ack[T]) complete(v T, err error) {
	a.value = v
	a.err = err
	close(a.done)
}

// Seq is the iterator type returned by [Store.Watch].
//
// It matches the shape of iter.Seq2[T, error] so callers can range over it:
//
//	for v, err := range store.Watch(ctx) {
//	    ...
//	}
//
// The docstore package avoids depending on iter directly.
type Seq[T any] func(yield func(T, error) bool)

// Open validates opts and starts the store's message loop.
//
// No I/O happens here: the target file is first read when the first watch or
// update arrives, so Open succeeds even on an unreadable file and the error
// surfaces on the operation that needs the value.
func Open[T any](opts Options[T]) (*Store[T], error) {
	if opts.Path == "" {
		return nil, errors.New("docstore: opts.Path is empty")
	}

	if opts.Serializer == nil {
		return nil, errors.New("docstore: opts.Serializer is nil")
	}

	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	s := &Store[T]{
		path:         opts.Path,
		scratch:      opts.Path + scratchSuffix,
		serializer:   opts.Serializer,
		onCorruption: opts.CorruptionHandler,
		initializers: opts.Initializers,
		equal:        opts.Equal,
		fs:           opts.FS,
		fileMode:     opts.FileMode,
		log:          opts.Logger,
		mbox:         newMailbox[message[T]](),
		ctx:          ctx,
		cancel:       cancel,
		loopDone:     make(chan struct{}),
	}

	s.slot.Store(newSlot[T]())

	go s.run()

	return s, nil
}

// Close terminates the message loop, completes all watchers cleanly, and
// fails still-queued updates with [ErrClosed]. Messages enqueued after Close
// are refused. Returns [ErrClosed] if the store is already closed.
func (s *Store[T]) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	s.cancel()
	<-s.loopDone

	return nil
}

// Watch returns a lazy sequence of the store's value. Each range over the
// sequence is an independent subscription: it observes the current value
// first (reading the file if no value is cached yet), then every subsequent
// successful update, conflated, so a slow consumer sees only the latest.
//
// The sequence ends with a non-nil error if reading the value fails, and with
// [ErrClosed] if the store was already closed when the range began; it ends
// without an error when the store is closed while watching or when ctx is
// done. A failed sequence may be restarted by calling Watch again: the engine
// retries the read from scratch for the new subscription.
func (s *Store[T]) Watch(ctx context.Context) Seq[T] {
	return func(yield func(T, error) bool) {
		var zero T

		sl := s.slot.Load()
		w := sl.subscribe()

		defer sl.unsubscribe(w)

		if !s.enqueue(message[T]{slot: sl}) {
			yield(zero, ErrClosed)

			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-w.ch:
				if !yield(e.value, nil) {
					return
				}
			case <-w.done:
				// A publish can race the close; deliver it first.
				select {
				case e := <-w.ch:
					if !yield(e.value, nil) {
						return
					}
				default:
				}

				if err := sl.closeErr(); err != nil {
					yield(zero, err)
				}

				return
			}
		}
	}
}

// Get returns the store's current value, reading the file if no value is
// cached yet. Shorthand for taking the first emission of [Store.Watch].
func (s *Store[T]) Get(ctx context.Context) (T, error) {
	var (
		v     T
		err   error
		found bool
	)

	s.Watch(ctx)(func(value T, watchErr error) bool {
		v, err = value, watchErr
		found = true

		return false
	})

	if !found && err == nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			// The sequence completed cleanly without a value, which only
			// happens when the store shut down under us.
			err = ErrClosed
		}
	}

	return v, err
}

// Update applies transform to the current value, persists the result
// atomically when it differs from the current value, and returns it.
// Transforms run serialized: no other read or update interleaves.
//
// The transform must be pure with respect to its input: mutating the
// current value in place (rather than returning a modified copy) is
// detected best-effort: that Update and later ones fail with
// [ErrValueMutated].
//
// If ctx ends while the update is queued or running, Update returns
// ctx.Err() but the update itself still completes and persists; the caller
// has merely stopped waiting.
func (s *Store[T]) Update(ctx context.Context, transform func(T) (T, error)) (T, error) {
	var zero T

	sl := s.slot.Load()
	_, hadValue := sl.current()
	a := newAck[T]()

	if !s.enqueue(message[T]{slot: sl, transform: transform, ack: a}) {
		return zero, ErrClosed
	}

	// When the captured slot holds no value yet, this update is also the
	// trigger for initialization. Initialization failures terminate the
	// slot without completing the ack, so await the slot first: either a
	// value arrives (init succeeded) or the close delivers the error.
	if !hadValue {
		err := awaitFirstEmission(ctx, sl)
		if err != nil {
			return zero, err
		}
	}

	select {
	case <-a.done:
		return a.value, a.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// awaitFirstEmission blocks until the slot holds a value, terminates, or ctx
// ends.
func awaitFirstEmission[T any](ctx context.Context, sl *slot[T]) error {
	w := sl.subscribe()
	defer sl.unsubscribe(w)

	select {
	case <-w.ch:
		return nil
	case <-w.done:
		// Value may have been published just before a clean shutdown.
		select {
		case <-w.ch:
			return nil
		default:
		}

		if err := sl.closeErr(); err != nil {
			return err
		}

		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue submits m to the loop. Reports false when the store is closed.
func (s *Store[T]) enqueue(m message[T]) bool {
	return s.mbox.put(m)
}

// run is the message loop: the single logical consumer that serializes every
// read and update. It owns the cache, the slot reference, and the
// initializer list; nothing else mutates them.
func (s *Store[T]) run() {
	defer close(s.loopDone)

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()

			return
		case <-s.mbox.wake():
		}

		for {
			if s.ctx.Err() != nil {
				s.shutdown()

				return
			}

			m, ok := s.mbox.take()
			if !ok {
				break
			}

			s.handle(m)
		}
	}
}

// handle processes one message to completion.
func (s *Store[T]) handle(m message[T]) {
	// A message enqueued against a slot that a prior failure terminated is
	// stale: whoever enqueued it has already seen the error through that
	// slot. Re-reporting would double-fail them.
	if m.slot.isClosed() {
		return
	}

	cur := s.slot.Load()

	err := s.ensureLoaded(cur)
	if err != nil {
		s.log.Warn("read failed, terminating slot", "path", s.path, "error", err)

		s.slot.Store(newSlot[T]())
		cur.close(err)

		return
	}

	if m.transform == nil {
		return
	}

	v, updateErr := s.transformAndWrite(cur, m.transform)
	m.ack.complete(v, updateErr)
}

// ensureLoaded makes sure the slot holds a value, reading the file and
// running initializers exactly once on the first successful pass.
// Idempotent: a slot that already has a value returns immediately.
func (s *Store[T]) ensureLoaded(sl *slot[T]) error {
	if _, ok := sl.current(); ok {
		return nil
	}

	v, err := s.readOrRecover()
	if err != nil {
		return err
	}

	v, err = s.runInitializers(s.ctx, v)
	if err != nil {
		return err
	}

	e, err := s.newEntry(v)
	if err != nil {
		return err
	}

	sl.publish(e)

	return nil
}

// transformAndWrite runs one update against the slot's current entry.
//
// The cached entry's fingerprint is verified before the transform (caller
// mutated an earlier result) and after it (transform mutated its input).
// When the transform result equals the current value, disk and slot are left
// untouched. A persistence failure leaves the slot holding the old value;
// no partial update is ever observable.
func (s *Store[T]) transformAndWrite(sl *slot[T], transform func(T) (T, error)) (T, error) {
	var zero T

	cur, ok := sl.current()
	if !ok {
		// ensureLoaded ran just before; the loop is the only publisher.
		panic("docstore: transform on empty slot")
	}

	err := s.checkUnmodified(cur)
	if err != nil {
		return zero, err
	}

	next, err := transform(cur.value)
	if err != nil {
		return zero, err
	}

	err = s.checkUnmodified(cur)
	if err != nil {
		return zero, err
	}

	if s.equal(next, cur.value) {
		return cur.value, nil
	}

	err = s.writeFile(next)
	if err != nil {
		return zero, err
	}

	e, err := s.newEntry(next)
	if err != nil {
		return zero, err
	}

	sl.publish(e)

	return next, nil
}

// shutdown closes the current slot cleanly and fails whatever was still
// queued.
func (s *Store[T]) shutdown() {
	s.slot.Load().close(nil)

	var zero T

	for _, m := range s.mbox.close() {
		if m.ack != nil {
			m.ack.complete(zero, ErrClosed)
		}
	}
}
