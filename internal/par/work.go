// Package par runs a growing set of work items on a bounded number of
// goroutines.
package par

import "sync"

// Work is a set of items processed in parallel, at most once each. Items
// are map keys; processing an item may add more items.
type Work[T comparable] struct {
	f       func(T)
	workers int

	mu      sync.Mutex
	added   map[T]bool
	queue   []T
	cond    sync.Cond
	waiting int
}

// Add queues item unless it was added before.
func (w *Work[T]) Add(item T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.added == nil {
		w.added = make(map[T]bool)
	}
	if w.added[item] {
		return
	}
	w.added[item] = true
	w.queue = append(w.queue, item)
	if w.waiting > 0 {
		w.cond.Signal()
	}
}

// Added reports whether item was ever added.
func (w *Work[T]) Added(item T) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.added[item]
}

// Do calls f on queued items, running at most n calls at a time, and
// returns once the queue is empty and no call is running. Items are taken
// in the order they were added. Do may be called only once.
func (w *Work[T]) Do(n int, f func(item T)) {
	if n < 1 {
		panic("par: Work.Do with n < 1")
	}
	w.mu.Lock()
	if w.workers > 0 {
		w.mu.Unlock()
		panic("par: Work.Do called twice")
	}
	w.workers = n
	w.f = f
	w.cond.L = &w.mu
	w.mu.Unlock()

	var wg sync.WaitGroup
	for i := 1; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.worker()
		}()
	}
	w.worker()
	wg.Wait()
}

// worker processes items until every worker is idle with nothing queued.
func (w *Work[T]) worker() {
	for {
		w.mu.Lock()
		for len(w.queue) == 0 {
			w.waiting++
			if w.waiting == w.workers {
				w.cond.Broadcast()
				w.mu.Unlock()
				return
			}
			w.cond.Wait()
			w.waiting--
		}
		item := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.f(item)
	}
}
