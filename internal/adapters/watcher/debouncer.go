package watcher

import (
	"slices"
	"sync"
	"time"

	"go.trai.ch/garden/internal/core/domain"
)

// DefaultDebounceWindow is the default time window for coalescing module changes.
const DefaultDebounceWindow = 100 * time.Millisecond

// Batch is a set of coalesced change notifications.
type Batch struct {
	// Modules holds the names of the changed modules, sorted.
	Modules []string
	// Structural is set when any coalesced change altered the module topology.
	Structural bool
}

// Debouncer coalesces a burst of change notifications into one batch.
// Batches reach the callback one at a time and in order; bursts that settle while the callback
// is still busy are merged into the next batch.
type Debouncer struct {
	mu         sync.Mutex
	pending    map[string]struct{}
	structural bool
	timer      *time.Timer
	window     time.Duration
	callback   func(Batch)
	delivering bool
	due        bool
}

// NewDebouncer creates a new debouncer with the given time window and callback.
func NewDebouncer(window time.Duration, callback func(Batch)) *Debouncer {
	return &Debouncer{
		pending:  make(map[string]struct{}),
		window:   window,
		callback: callback,
	}
}

// Add records a change. Its signature matches ports.ChangeHandler.
func (d *Debouncer) Add(module *domain.Module, structural bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if module != nil {
		d.pending[module.Name] = struct{}{}
	}
	d.structural = d.structural || structural

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

// take returns the pending batch and resets the state. Callers hold d.mu.
func (d *Debouncer) take() (Batch, bool) {
	if len(d.pending) == 0 && !d.structural {
		return Batch{}, false
	}

	b := Batch{Modules: make([]string, 0, len(d.pending)), Structural: d.structural}
	for name := range d.pending {
		b.Modules = append(b.Modules, name)
	}
	slices.Sort(b.Modules)

	d.pending = make(map[string]struct{})
	d.structural = false
	return b, true
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	d.timer = nil
	if d.delivering {
		d.due = true
		d.mu.Unlock()
		return
	}
	b, ok := d.take()
	if !ok || d.callback == nil {
		d.mu.Unlock()
		return
	}
	d.delivering = true
	d.mu.Unlock()

	go d.deliver(b)
}

// deliver runs the callback for b and then for every batch that became due meanwhile.
func (d *Debouncer) deliver(b Batch) {
	for {
		d.callback(b)

		d.mu.Lock()
		next, ok := Batch{}, false
		if d.due {
			d.due = false
			next, ok = d.take()
		}
		if !ok {
			d.delivering = false
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
		b = next
	}
}

// Flush delivers pending changes immediately and blocks until the callback returns.
// While an earlier batch is still being delivered the changes are handed to that delivery.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		if !d.timer.Stop() {
			// Timer already fired, let it complete rather than processing twice.
			d.mu.Unlock()
			return
		}
		d.timer = nil
	}
	if d.delivering {
		d.due = true
		d.mu.Unlock()
		return
	}
	b, ok := d.take()
	if !ok || d.callback == nil {
		d.mu.Unlock()
		return
	}
	d.delivering = true
	d.mu.Unlock()

	d.deliver(b)
}
