// Package debounce delays work until activity on a key has been quiet for a
// fixed interval.
package debounce

import (
	"sync"
	"time"
)

// slot holds the single pending item of a key and its flush timer.
type slot[T any] struct {
	item  T
	timer *time.Timer
	gen   uint64
}

// Debouncer keeps at most one pending item per key. Each Enqueue replaces
// the pending item and re-arms the timer, so only the last item scheduled
// within the delay is flushed.
type Debouncer[T any] struct {
	mu      sync.Mutex
	slots   map[string]*slot[T]
	gen     uint64
	stopped bool

	delay   time.Duration
	onFlush func(key string, item T) error
	onError func(key string, err error)
}

// Option configures a Debouncer.
type Option[T any] func(*Debouncer[T])

// WithDelay sets the quiet interval. A delay <= 0 flushes synchronously.
func WithDelay[T any](delay time.Duration) Option[T] {
	return func(d *Debouncer[T]) {
		if delay < 0 {
			delay = 0
		}
		d.delay = delay
	}
}

// WithOnFlush sets the callback invoked with the surviving item.
func WithOnFlush[T any](fn func(key string, item T) error) Option[T] {
	return func(d *Debouncer[T]) {
		d.onFlush = fn
	}
}

// WithOnError sets an optional callback for flush errors.
func WithOnError[T any](fn func(key string, err error)) Option[T] {
	return func(d *Debouncer[T]) {
		d.onError = fn
	}
}

// New creates a Debouncer.
func New[T any](opts ...Option[T]) *Debouncer[T] {
	d := &Debouncer[T]{slots: make(map[string]*slot[T])}
	for _, opt := range opts {
		opt(d)
	}
	if d.onFlush == nil {
		d.onFlush = func(string, T) error { return nil }
	}
	return d
}

// Enqueue schedules item for key, discarding any item still pending for it.
func (d *Debouncer[T]) Enqueue(key string, item T) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	if d.delay <= 0 {
		if s, ok := d.slots[key]; ok {
			s.timer.Stop()
			delete(d.slots, key)
		}
		d.mu.Unlock()
		d.flush(key, item)
		return
	}

	d.gen++
	gen := d.gen
	s, ok := d.slots[key]
	if ok {
		s.timer.Stop()
	} else {
		s = &slot[T]{}
		d.slots[key] = s
	}
	s.item = item
	s.gen = gen
	s.timer = time.AfterFunc(d.delay, func() {
		d.fire(key, gen)
	})
	d.mu.Unlock()
}

// fire flushes key if gen is still the pending generation. A timer that
// fired while a newer Enqueue held the lock finds a different gen and exits.
func (d *Debouncer[T]) fire(key string, gen uint64) {
	d.mu.Lock()
	s, ok := d.slots[key]
	if !ok || d.stopped || s.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.slots, key)
	item := s.item
	d.mu.Unlock()

	d.flush(key, item)
}

// Flush runs the pending item for key now. It reports whether one was pending.
func (d *Debouncer[T]) Flush(key string) bool {
	d.mu.Lock()
	s, ok := d.slots[key]
	if !ok || d.stopped {
		d.mu.Unlock()
		return false
	}
	s.timer.Stop()
	delete(d.slots, key)
	item := s.item
	d.mu.Unlock()

	d.flush(key, item)
	return true
}

// Cancel drops the pending item for key without flushing it.
func (d *Debouncer[T]) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.slots[key]; ok {
		s.timer.Stop()
		delete(d.slots, key)
	}
}

func (d *Debouncer[T]) flush(key string, item T) {
	if err := d.onFlush(key, item); err != nil && d.onError != nil {
		d.onError(key, err)
	}
}

// Stop cancels every pending item and rejects further Enqueue calls.
// A flush already running is not interrupted.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, s := range d.slots {
		s.timer.Stop()
		delete(d.slots, key)
	}
}

// Pending reports whether key has an item waiting.
func (d *Debouncer[T]) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.slots[key]
	return ok
}

// PendingCount returns the number of keys with a pending item.
func (d *Debouncer[T]) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.slots)
}
